package service

import (
	"context"
	"fmt"

	"github.com/vaidashi/storefront-orders/internal/lifecycle"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// EventRecorder receives order lifecycle transitions
type EventRecorder interface {
	Record(ctx context.Context, eventType string, data models.OrderEventData) error
}

// OutboxWriter stores outbox messages
type OutboxWriter interface {
	Create(ctx context.Context, message *models.OutboxMessage) error
}

// OutboxRecorder turns transitions into outbox messages for later publishing
type OutboxRecorder struct {
	outbox OutboxWriter
	logger logger.Logger
}

// NewOutboxRecorder creates a new OutboxRecorder
func NewOutboxRecorder(outbox OutboxWriter, logger logger.Logger) *OutboxRecorder {
	return &OutboxRecorder{outbox: outbox, logger: logger}
}

func (r *OutboxRecorder) Record(ctx context.Context, eventType string, data models.OrderEventData) error {
	msg, err := models.NewOrderEvent(eventType, data)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	if err := r.outbox.Create(ctx, msg); err != nil {
		return err
	}

	r.logger.Debug("Order event queued", "messageID", msg.ID, "eventType", eventType, "orderID", data.OrderID)
	return nil
}

// NopRecorder drops every event
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, models.OrderEventData) error { return nil }

func eventData(userID models.DocumentID, order *models.Order, previous models.OrderStatus) models.OrderEventData {
	return models.OrderEventData{
		UserID:         userID,
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
		ItemCount:      len(order.Items),
		Total:          lifecycle.OrderTotal(order.Items),
	}
}
