package experts

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expertCols = []string{"id", "user_id", "name", "phone_number", "category", "company", "notes", "created_at", "updated_at"}

func TestPostgresRepository_ListForOwnerFiltersCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY name ASC")).
		WithArgs("u1", "lender").
		WillReturnRows(sqlmock.NewRows(expertCols).
			AddRow("e1", "u1", "Bob", "5551234567", "lender", "", "", now, now))

	repo := NewPostgresRepository(db)
	list, err := repo.ListForOwner(context.Background(), "u1", CategoryLender)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, CategoryLender, list[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM experts")).
		WithArgs("u1", "e404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	assert.ErrorIs(t, repo.Delete(context.Background(), "u1", "e404"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
