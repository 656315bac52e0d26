package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPostgres_PingsPool(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("sqlmock_open_ok", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	opened, err := OpenPostgres(context.Background(), "sqlmock", "sqlmock_open_ok", PostgresPoolConfig{MaxOpenConns: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, opened.Stats().MaxOpenConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenPostgres_ClosesOnPingFailure(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("sqlmock_open_fail", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, err = OpenPostgres(context.Background(), "sqlmock", "sqlmock_open_fail", PostgresPoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping failed")
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(wrapped))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestIsMissingRow(t *testing.T) {
	assert.True(t, IsMissingRow(fmt.Errorf("get expert: %w", sql.ErrNoRows)))
	assert.True(t, IsMissingRow(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, IsMissingRow(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsMissingRow(nil))
}
