package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/storefront-orders/pkg/logger"
)

func TestRunMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS outbox_messages").WillReturnResult(sqlmock.NewResult(0, 0))

	d := Wrap(sqlx.NewDb(db, "postgres"), logger.NewNopLogger())
	require.NoError(t, d.RunMigrations(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	d := Wrap(sqlx.NewDb(db, "postgres"), logger.NewNopLogger())
	err = d.RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	d := Wrap(sqlx.NewDb(db, "postgres"), logger.NewNopLogger())
	assert.NoError(t, d.Ping(context.Background()))
}
