package experts

import (
	"context"
	"database/sql"

	"expertassist/pkg/utils"
)

type Repository interface {
	Create(ctx context.Context, e Expert) (Expert, error)
	// Get is unscoped and reserved for background workers.
	Get(ctx context.Context, id string) (Expert, error)
	GetForOwner(ctx context.Context, userID, id string) (Expert, error)
	// ListForOwner returns experts sorted by name; an empty category means all.
	ListForOwner(ctx context.Context, userID string, category Category) ([]Expert, error)
	Update(ctx context.Context, e Expert) (Expert, error)
	Delete(ctx context.Context, userID, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const expertColumns = `id, user_id, name, phone_number, category, company, notes, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, e Expert) (Expert, error) {
	const q = `
INSERT INTO experts (` + expertColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	if _, err := r.db.ExecContext(ctx, q,
		e.ID, e.UserID, e.Name, e.PhoneNumber, string(e.Category), e.Company, e.Notes, e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return Expert{}, err
	}
	return e, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Expert, error) {
	const q = `SELECT ` + expertColumns + ` FROM experts WHERE id = $1`
	return scanExpert(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepository) GetForOwner(ctx context.Context, userID, id string) (Expert, error) {
	const q = `SELECT ` + expertColumns + ` FROM experts WHERE user_id = $1 AND id = $2`
	return scanExpert(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *PostgresRepository) ListForOwner(ctx context.Context, userID string, category Category) ([]Expert, error) {
	const q = `
SELECT ` + expertColumns + `
FROM experts
WHERE user_id = $1 AND ($2 = '' OR category = $2)
ORDER BY name ASC
`
	rows, err := r.db.QueryContext(ctx, q, userID, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Expert, 0)
	for rows.Next() {
		e, err := scanExpert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, e Expert) (Expert, error) {
	const q = `
UPDATE experts
SET name = $3, phone_number = $4, category = $5, company = $6, notes = $7, updated_at = $8
WHERE user_id = $1 AND id = $2
RETURNING ` + expertColumns
	return scanExpert(r.db.QueryRowContext(ctx, q,
		e.UserID, e.ID, e.Name, e.PhoneNumber, string(e.Category), e.Company, e.Notes, e.UpdatedAt,
	))
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	const q = `DELETE FROM experts WHERE user_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, userID, id)
	if err != nil {
		if utils.IsMissingRow(err) {
			return ErrNotFound
		}
		return err
	}
	if utils.RowsAffected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpert(row rowScanner) (Expert, error) {
	var (
		e        Expert
		category string
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Name,
		&e.PhoneNumber,
		&category,
		&e.Company,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if utils.IsMissingRow(err) {
			return Expert{}, ErrNotFound
		}
		return Expert{}, err
	}
	e.Category = Category(category)
	return e, nil
}
