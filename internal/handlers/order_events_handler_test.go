package handlers

import (
	"context"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/storefront-orders/internal/metrics"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

func eventMessage(t *testing.T, eventType string) *sarama.ConsumerMessage {
	t.Helper()

	msg, err := models.NewOrderEvent(eventType, models.OrderEventData{
		UserID:    "1",
		OrderID:   "1717243200000",
		Status:    models.OrderStatusPlaced,
		ItemCount: 1,
		Total:     decimal.NewFromInt(5000),
	})
	require.NoError(t, err)

	return &sarama.ConsumerMessage{Topic: "storefront.orders", Key: []byte(msg.AggregateID), Value: msg.Payload}
}

func TestHandleOrderEventCountsOnce(t *testing.T) {
	h := NewOrderEventsHandler(logger.NewNopLogger())
	counter := metrics.EventsConsumed(models.EventOrderPlaced)
	before := testutil.ToFloat64(counter)

	msg := eventMessage(t, models.EventOrderPlaced)
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NoError(t, h.HandleMessage(context.Background(), msg))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandleUnknownEventIsSkipped(t *testing.T) {
	h := NewOrderEventsHandler(logger.NewNopLogger())
	assert.NoError(t, h.HandleMessage(context.Background(), eventMessage(t, "order_shipped")))
}

func TestHandleMalformedEvent(t *testing.T) {
	h := NewOrderEventsHandler(logger.NewNopLogger())
	err := h.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")})
	assert.Error(t, err)
}

func TestSeenSetIsBounded(t *testing.T) {
	h := NewOrderEventsHandler(logger.NewNopLogger())
	h.capacity = 2

	assert.True(t, h.firstDelivery("a"))
	assert.True(t, h.firstDelivery("b"))
	assert.True(t, h.firstDelivery("c"))
	assert.False(t, h.firstDelivery("c"))
	assert.True(t, h.firstDelivery("a"))
}
