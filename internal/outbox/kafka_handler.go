package outbox

import (
	"context"
	"fmt"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// Publisher sends a keyed payload to a topic
type Publisher interface {
	SendMessage(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// KafkaHandler publishes outbox messages to Kafka
type KafkaHandler struct {
	logger   logger.Logger
	producer Publisher
	topic    string
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer Publisher, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// HandleMessage publishes the event keyed by order id, so every event of one
// order lands on the same partition in order
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	h.logger.Debug("Publishing message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	err := h.producer.SendMessage(ctx, h.topic, message.AggregateID, message.Payload, map[string]string{
		"event_type": message.EventType,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	return nil
}
