package utils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrateUp applies every pending migration found at the root of migrations.
// It opens a dedicated connection so closing the migrator never touches the
// application pool.
func MigrateUp(ctx context.Context, driverName, dsn string, migrations fs.FS) (uint, error) {
	db, err := OpenPostgres(ctx, driverName, dsn, PostgresPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return 0, err
	}

	src, err := iofs.New(migrations, ".")
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("migrations source: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", drv)
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("migrations init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrations up: %w", err)
	}
	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, err
	}
	return version, nil
}
