package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vaidashi/storefront-orders/internal/config"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// Database holds the connection used by the order event outbox
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New connects to PostgreSQL
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return Wrap(db, logger), nil
}

// Wrap adopts an already open connection
func Wrap(db *sqlx.DB, logger logger.Logger) *Database {
	return &Database{DB: db, logger: logger}
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// schema is the outbox table the order events are written to. Orders themselves
// live in the user documents.
const schema = `
CREATE TABLE IF NOT EXISTS outbox_messages (
	id SERIAL PRIMARY KEY,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id VARCHAR(100) NOT NULL,
	event_type VARCHAR(50) NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	processed_at TIMESTAMP,
	processing_attempts INT NOT NULL DEFAULT 0,
	last_error TEXT,
	status VARCHAR(20) NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status, created_at);
CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);
`

// RunMigrations creates the outbox table when it is missing
func (d *Database) RunMigrations(ctx context.Context) error {
	if _, err := d.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}
