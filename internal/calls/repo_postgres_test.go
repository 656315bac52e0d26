package calls

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRow(id, status string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(callColumnNames).AddRow(
		id, "u1", "e1", "goal", status, "", "", "", "",
		[]byte(`["https://a.test"]`), "", nil, "", now, now, nil,
	)
}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Unix(1700000000, 0).UTC()
	repo := NewPostgresRepository(db)
	repo.clock = func() time.Time { return now }
	return repo, mock, now
}

func TestPostgresRepository_TransitionSucceeds(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE calls SET status = $3, updated_at = $4")).
		WithArgs("c1", "pending", "dialing", now).
		WillReturnRows(callRow("c1", "dialing", now))

	c, err := repo.Transition(context.Background(), "c1", StatusPending, StatusDialing)
	require.NoError(t, err)
	assert.Equal(t, StatusDialing, c.Status)
	assert.Equal(t, []string{"https://a.test"}, c.ContextLinks)
	assert.Nil(t, c.DurationSeconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_TransitionConflict(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE calls SET status")).
		WithArgs("c1", "pending", "dialing", now).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM calls WHERE id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("canceled"))

	_, err := repo.Transition(context.Background(), "c1", StatusPending, StatusDialing)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_TransitionMissing(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE calls SET status")).
		WithArgs("c404", "pending", "dialing", now).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM calls")).
		WithArgs("c404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Transition(context.Background(), "c404", StatusPending, StatusDialing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FinishGuardsTerminal(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND status NOT IN ('completed', 'failed', 'canceled')")).
		WithArgs("c1", "failed", "provider down", now).
		WillReturnRows(sqlmock.NewRows(callColumnNames).AddRow(
			"c1", "u1", "e1", "goal", "failed", "", "", "", "provider down",
			[]byte(`[]`), "", nil, "", now, now, now,
		))

	c, err := repo.Finish(context.Background(), "c1", StatusFailed, "provider down", now)
	require.NoError(t, err)
	assert.Equal(t, "provider down", c.FailureReason)
	require.NotNil(t, c.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CompleteWritesEverything(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SET status = $3, transcript = $4, summary = $5, duration_seconds = $6")).
		WithArgs("c1", "summarizing", "completed", "t", "s", 8, now).
		WillReturnRows(sqlmock.NewRows(callColumnNames).AddRow(
			"c1", "u1", "e1", "goal", "completed", "", "t", "s", "",
			[]byte(`[]`), "", int64(8), "", now, now, now,
		))

	c, err := repo.Complete(context.Background(), "c1", StatusSummarizing, Result{Transcript: "t", Summary: "s", DurationSeconds: 8, CompletedAt: now})
	require.NoError(t, err)
	require.NotNil(t, c.DurationSeconds)
	assert.Equal(t, 8, *c.DurationSeconds)
	assert.Equal(t, StatusCompleted, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListForOwnerJoinsExpert(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	cols := append(append([]string{}, callColumnNames...), "name", "phone_number", "category")
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN experts e ON e.id = c.expert_id")).
		WithArgs("u1", "").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("c2", "u1", "e1", "g", "completed", "", "", "", "", []byte(`[]`), "", nil, "", now, now, nil, "Bob", "5551234567", "lender").
			AddRow("c1", "u1", "e9", "g", "failed", "", "", "", "x", []byte(`[]`), "", nil, "", now, now, nil, nil, nil, nil))

	list, err := repo.ListForOwner(context.Background(), "u1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Expert)
	assert.Equal(t, "Bob", list[0].Expert.Name)
	assert.Nil(t, list[1].Expert)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SetProviderCallSIDMissing(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE calls SET provider_call_sid")).
		WithArgs("c404", "CA1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetProviderCallSID(context.Background(), "c404", "CA1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CountByStatus(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("completed", 3).AddRow("failed", 1))

	counts, err := repo.CountByStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[StatusCompleted])
	assert.Equal(t, 1, counts[StatusFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}
