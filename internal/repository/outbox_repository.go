package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload,
	created_at, processed_at, processing_attempts, last_error, status`

// OutboxRepository handles database operations for outbox messages
type OutboxRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sqlx.DB, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new outbox message into the database
func (r *OutboxRepository) Create(ctx context.Context, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload,
			created_at, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) RETURNING id
	`

	var id int64

	err := r.db.QueryRowContext(
		ctx,
		query,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&id)

	if err != nil {
		r.logger.Error("Failed to create outbox message", "error", err, "aggregateID", message.AggregateID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	message.ID = id
	return nil
}

// GetPendingMessages retrieves pending outbox messages, oldest first
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	var messages []*models.OutboxMessage

	err := r.db.SelectContext(ctx, &messages, query, models.OutboxStatusPending, limit)

	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return messages, nil
}

// MarkAsProcessing bumps the attempt counter of a message being published
func (r *OutboxRepository) MarkAsProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = processing_attempts + 1
		WHERE id = $2
	`

	return r.exec(ctx, "processing", query, models.OutboxStatusProcessing, id)
}

// MarkAsPending returns a message to the queue after a failed attempt
func (r *OutboxRepository) MarkAsPending(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	return r.exec(ctx, "pending", query, models.OutboxStatusPending, errorMessage, id)
}

// MarkAsCompleted updates the status of an outbox message to completed
func (r *OutboxRepository) MarkAsCompleted(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, processed_at = $2
		WHERE id = $3
	`

	return r.exec(ctx, "completed", query, models.OutboxStatusCompleted, time.Now().UTC(), id)
}

// MarkAsFailed parks a message that will not be retried
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, last_error = $2
		WHERE id = $3
	`

	return r.exec(ctx, "failed", query, models.OutboxStatusFailed, errorMessage, id)
}

// RequeueFailed moves failed messages back to pending with a fresh attempt budget
func (r *OutboxRepository) RequeueFailed(ctx context.Context) (int64, error) {
	query := `
		UPDATE outbox_messages
		SET status = $1, processing_attempts = 0
		WHERE status = $2
	`

	res, err := r.db.ExecContext(ctx, query, models.OutboxStatusPending, models.OutboxStatusFailed)
	if err != nil {
		r.logger.Error("Failed to requeue outbox messages", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return res.RowsAffected()
}

// GetMessage retrieves an outbox message by ID
func (r *OutboxRepository) GetMessage(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE id = $1
	`

	var message models.OutboxMessage

	err := r.db.GetContext(ctx, &message, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get outbox message", "error", err, "messageID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &message, nil
}

func (r *OutboxRepository) exec(ctx context.Context, status, query string, args ...interface{}) error {
	_, err := r.db.ExecContext(ctx, query, args...)

	if err != nil {
		r.logger.Error("Failed to update outbox message", "error", err, "status", status, "messageID", args[len(args)-1])
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}
