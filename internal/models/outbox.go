package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle event types recorded for every persisted order transition
const (
	EventOrderPlaced    = "order_placed"
	EventOrderCancelled = "order_cancelled"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage is a lifecycle event waiting to be published
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OrderEvent is the envelope published for order lifecycle changes
type OrderEvent struct {
	EventType   string         `json:"event_type"`
	EventID     string         `json:"event_id"`
	AggregateID string         `json:"aggregate_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        OrderEventData `json:"data"`
}

// OrderEventData describes the order at the time of the transition
type OrderEventData struct {
	UserID         DocumentID      `json:"user_id"`
	OrderID        DocumentID      `json:"order_id"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	ItemCount      int             `json:"item_count"`
	Total          decimal.Decimal `json:"total"`
}

// NewOrderEvent builds the outbox message for an order transition
func NewOrderEvent(eventType string, data OrderEventData) (*OutboxMessage, error) {
	now := time.Now().UTC()

	event := OrderEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: data.OrderID.String(),
		OccurredAt:  now,
		Data:        data,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType:      "order",
		AggregateID:        data.OrderID.String(),
		EventType:          eventType,
		Payload:            payload,
		CreatedAt:          now,
		ProcessingAttempts: 0,
		Status:             OutboxStatusPending,
	}, nil
}
