package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// LoggingHandler writes order events to the log, used when Kafka is not configured
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// HandleMessage decodes the event and logs it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var event models.OrderEvent

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("Order event",
		"messageID", message.ID,
		"eventType", event.EventType,
		"eventID", event.EventID,
		"userID", event.Data.UserID,
		"orderID", event.Data.OrderID,
		"status", event.Data.Status,
		"total", event.Data.Total.String(),
		"occurredAt", event.OccurredAt)

	return nil
}
