package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_rate_limited_requests_total",
			Help: "Requests refused by a rate limiter",
		},
		[]string{"limiter"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	orderEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_events_consumed_total",
			Help: "Order lifecycle events read back from Kafka",
		},
		[]string{"event_type"},
	)

	outboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_outbox_messages_total",
			Help: "Outbox messages handled by the processor",
		},
		[]string{"event_type", "result"},
	)
)

// Operation labels
const (
	OpPlaceFromCart = "place_from_cart"
	OpPlaceDirect   = "place_direct"
	OpCheckout      = "checkout_selected"
	OpCancel        = "cancel"
	OpFetch         = "fetch"
)

// RecordOrderOperation counts an order operation outcome
func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

// RecordEventConsumed counts an order event read from the broker
func RecordEventConsumed(eventType string) {
	orderEventsConsumed.WithLabelValues(eventType).Inc()
}

// RecordOutboxResult counts an outbox publish attempt ("published", "retry", "failed")
func RecordOutboxResult(eventType, result string) {
	outboxPublished.WithLabelValues(eventType, result).Inc()
}

// EventsConsumed returns the consumed-events counter of one event type
func EventsConsumed(eventType string) prometheus.Counter {
	return orderEventsConsumed.WithLabelValues(eventType)
}

// OutboxResults returns the outbox counter of one event type and result
func OutboxResults(eventType, result string) prometheus.Counter {
	return outboxPublished.WithLabelValues(eventType, result)
}
