package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"expertassist/pkg/utils"
)

// PostgresRepository stores calls in the calls table.
type PostgresRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, clock: time.Now}
}

var callColumnNames = []string{
	"id", "user_id", "expert_id", "goal", "status", "recording_url", "transcript", "summary",
	"failure_reason", "context_links", "context_text", "duration_seconds", "provider_call_sid",
	"created_at", "updated_at", "completed_at",
}

var (
	callColumns       = strings.Join(callColumnNames, ", ")
	callColumnsQualed = "c." + strings.Join(callColumnNames, ", c.")
	activeStatusList  = quoteStatuses(ActiveStatuses)
	terminalList      = quoteStatuses([]Status{StatusCompleted, StatusFailed, StatusCanceled})
)

func quoteStatuses(ss []Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}

func (r *PostgresRepository) Create(ctx context.Context, c Call) (Call, error) {
	links, err := json.Marshal(nonNilLinks(c.ContextLinks))
	if err != nil {
		return Call{}, err
	}
	q := `
INSERT INTO calls (id, user_id, expert_id, goal, status, context_links, context_text, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + callColumns
	return scanCall(r.db.QueryRowContext(ctx, q,
		c.ID, c.UserID, c.ExpertID, c.Goal, string(c.Status), string(links), c.ContextText, c.CreatedAt, c.UpdatedAt,
	))
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepository) GetForOwner(ctx context.Context, userID, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE user_id = $1 AND id = $2`
	return scanCall(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *PostgresRepository) ListForOwner(ctx context.Context, userID string, f ListFilter) ([]CallWithExpert, error) {
	q := `
SELECT ` + callColumnsQualed + `, e.name, e.phone_number, e.category
FROM calls c
LEFT JOIN experts e ON e.id = c.expert_id
WHERE c.user_id = $1 AND ($2 = '' OR c.status = $2)
ORDER BY c.created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, userID, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallWithExpert, 0)
	for rows.Next() {
		var name, phone, category sql.NullString
		c, err := scanCall(rows, &name, &phone, &category)
		if err != nil {
			return nil, err
		}
		row := CallWithExpert{Call: c}
		if name.Valid {
			row.Expert = &ExpertSummary{Name: name.String, PhoneNumber: phone.String, Category: category.String}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Transition(ctx context.Context, id string, from, to Status) (Call, error) {
	q := `
UPDATE calls SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id, string(from), string(to), r.clock().UTC()))
	if errors.Is(err, ErrNotFound) {
		return Call{}, r.missOrConflict(ctx, id)
	}
	return c, err
}

func (r *PostgresRepository) Complete(ctx context.Context, id string, from Status, res Result) (Call, error) {
	q := `
UPDATE calls
SET status = $3, transcript = $4, summary = $5, duration_seconds = $6, completed_at = $7, updated_at = $7
WHERE id = $1 AND status = $2
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q,
		id, string(from), string(StatusCompleted), res.Transcript, res.Summary, res.DurationSeconds, res.CompletedAt.UTC(),
	))
	if errors.Is(err, ErrNotFound) {
		return Call{}, r.missOrConflict(ctx, id)
	}
	return c, err
}

func (r *PostgresRepository) Finish(ctx context.Context, id string, status Status, reason string, at time.Time) (Call, error) {
	if status != StatusFailed && status != StatusCanceled {
		return Call{}, fmt.Errorf("%w: finish with %q", ErrInvalidArgument, status)
	}
	if status != StatusFailed {
		reason = ""
	}
	q := `
UPDATE calls
SET status = $2, failure_reason = $3, completed_at = $4, updated_at = $4
WHERE id = $1 AND status NOT IN (` + terminalList + `)
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id, string(status), reason, at.UTC()))
	if errors.Is(err, ErrNotFound) {
		return Call{}, r.missOrConflict(ctx, id)
	}
	return c, err
}

func (r *PostgresRepository) SetProviderCallSID(ctx context.Context, id, sid string) error {
	const q = `UPDATE calls SET provider_call_sid = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, sid, r.clock().UTC())
	if err != nil {
		return err
	}
	if utils.RowsAffected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetRecordingURL(ctx context.Context, providerCallSID, url string) (Call, error) {
	if providerCallSID == "" {
		return Call{}, ErrNotFound
	}
	q := `
UPDATE calls SET recording_url = $2, updated_at = $3
WHERE provider_call_sid = $1
RETURNING ` + callColumns
	return scanCall(r.db.QueryRowContext(ctx, q, providerCallSID, url, r.clock().UTC()))
}

func (r *PostgresRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]Call, error) {
	q := `
SELECT ` + callColumns + `
FROM calls
WHERE status IN (` + activeStatusList + `) AND updated_at < $1
ORDER BY updated_at ASC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	const q = `SELECT status, COUNT(*) FROM calls WHERE user_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Status]int{}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}

// missOrConflict tells a vanished row apart from a failed status precondition.
func (r *PostgresRepository) missOrConflict(ctx context.Context, id string) error {
	var s string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM calls WHERE id = $1`, id).Scan(&s)
	if utils.IsMissingRow(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: current status %s", ErrStatusConflict, s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner, extra ...any) (Call, error) {
	var (
		c         Call
		status    string
		links     []byte
		duration  sql.NullInt64
		completed sql.NullTime
	)
	dest := []any{
		&c.ID,
		&c.UserID,
		&c.ExpertID,
		&c.Goal,
		&status,
		&c.RecordingURL,
		&c.Transcript,
		&c.Summary,
		&c.FailureReason,
		&links,
		&c.ContextText,
		&duration,
		&c.ProviderCallSID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&completed,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if utils.IsMissingRow(err) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}

	c.Status = Status(status)
	if len(links) > 0 {
		if err := json.Unmarshal(links, &c.ContextLinks); err != nil {
			return Call{}, fmt.Errorf("decode context_links: %w", err)
		}
	}
	c.ContextLinks = nonNilLinks(c.ContextLinks)
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	if completed.Valid {
		t := completed.Time
		c.CompletedAt = &t
	}
	return c, nil
}

func nonNilLinks(links []string) []string {
	if links == nil {
		return []string{}
	}
	return links
}
