package handlers

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"

	"github.com/vaidashi/storefront-orders/internal/metrics"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

const defaultSeenCapacity = 10000

// OrderEventsHandler consumes the order lifecycle events published by the outbox.
// Redelivered events are recognised by id and skipped.
type OrderEventsHandler struct {
	logger logger.Logger

	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List
	capacity int
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		logger:   logger,
		seen:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: defaultSeenCapacity,
	}
}

// HandleMessage handles incoming order events from Kafka messages
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OrderEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal message", "error", err, "offset", msg.Offset)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if !h.firstDelivery(event.EventID) {
		h.logger.Debug("Skipping redelivered order event", "eventID", event.EventID)
		return nil
	}

	switch event.EventType {
	case models.EventOrderPlaced:
		h.logger.Info("Order placed",
			"userID", event.Data.UserID,
			"orderID", event.Data.OrderID,
			"items", event.Data.ItemCount,
			"total", event.Data.Total.String())
	case models.EventOrderCancelled:
		h.logger.Info("Order cancelled",
			"userID", event.Data.UserID,
			"orderID", event.Data.OrderID,
			"previousStatus", event.Data.PreviousStatus)
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType, "eventID", event.EventID)
		return nil
	}

	metrics.RecordEventConsumed(event.EventType)
	return nil
}

// firstDelivery remembers the most recent event ids, evicting the oldest
func (h *OrderEventsHandler) firstDelivery(eventID string) bool {
	if eventID == "" {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.seen[eventID]; ok {
		return false
	}

	h.seen[eventID] = h.order.PushBack(eventID)
	if h.order.Len() > h.capacity {
		oldest := h.order.Front()
		h.order.Remove(oldest)
		delete(h.seen, oldest.Value.(string))
	}
	return true
}
