package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/storefront-orders/internal/metrics"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/kafka"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

type fakeRepo struct {
	mu       sync.Mutex
	messages map[int64]*models.OutboxMessage
}

func newFakeRepo(msgs ...*models.OutboxMessage) *fakeRepo {
	r := &fakeRepo{messages: map[int64]*models.OutboxMessage{}}
	for _, m := range msgs {
		m.Status = models.OutboxStatusPending
		r.messages[m.ID] = m
	}
	return r
}

func (r *fakeRepo) GetPendingMessages(_ context.Context, limit int) ([]*models.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.OutboxMessage
	for id := int64(1); id <= int64(len(r.messages)) && len(out) < limit; id++ {
		if m, ok := r.messages[id]; ok && m.Status == models.OutboxStatusPending {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkAsProcessing(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[id].Status = models.OutboxStatusProcessing
	r.messages[id].ProcessingAttempts++
	return nil
}

func (r *fakeRepo) MarkAsPending(_ context.Context, id int64, errMsg string) error {
	return r.set(id, models.OutboxStatusPending, errMsg)
}

func (r *fakeRepo) MarkAsCompleted(_ context.Context, id int64) error {
	return r.set(id, models.OutboxStatusCompleted, "")
}

func (r *fakeRepo) MarkAsFailed(_ context.Context, id int64, errMsg string) error {
	return r.set(id, models.OutboxStatusFailed, errMsg)
}

func (r *fakeRepo) set(id int64, status models.OutboxStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[id].Status = status
	if errMsg != "" {
		r.messages[id].LastError = &errMsg
	}
	return nil
}

func (r *fakeRepo) status(id int64) models.OutboxStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[id].Status
}

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) HandleMessage(context.Context, *models.OutboxMessage) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("broker unavailable")
	}
	return nil
}

func placedMessage(t *testing.T, id int64) *models.OutboxMessage {
	t.Helper()
	msg, err := models.NewOrderEvent(models.EventOrderPlaced, models.OrderEventData{
		UserID: "1", OrderID: "1717243200000", Status: models.OrderStatusPlaced, ItemCount: 1, Total: decimal.NewFromInt(2500),
	})
	require.NoError(t, err)
	msg.ID = id
	return msg
}

func newTestProcessor(repo Repository, maxRetries int) *Processor {
	return NewProcessor(repo, ProcessorConfig{PollingInterval: time.Second, BatchSize: 10, MaxRetries: maxRetries}, logger.NewNopLogger())
}

func TestProcessorPublishesPending(t *testing.T) {
	repo := newFakeRepo(placedMessage(t, 1))
	p := newTestProcessor(repo, 3)
	p.RegisterHandler(models.EventOrderPlaced, NewLoggingHandler(logger.NewNopLogger()))

	before := testutil.ToFloat64(metrics.OutboxResults(models.EventOrderPlaced, "published"))

	require.NoError(t, p.processBatch(context.Background()))
	assert.Equal(t, models.OutboxStatusCompleted, repo.status(1))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OutboxResults(models.EventOrderPlaced, "published")))
}

func TestProcessorRequeuesThenParks(t *testing.T) {
	repo := newFakeRepo(placedMessage(t, 1))
	handler := &flakyHandler{failures: 10}
	p := newTestProcessor(repo, 2)
	p.RegisterHandler(models.EventOrderPlaced, handler)
	ctx := context.Background()

	require.NoError(t, p.processBatch(ctx))
	assert.Equal(t, models.OutboxStatusPending, repo.status(1))

	require.NoError(t, p.processBatch(ctx))
	assert.Equal(t, models.OutboxStatusFailed, repo.status(1))

	require.NoError(t, p.processBatch(ctx))
	assert.Equal(t, 2, handler.calls)
}

func TestProcessorRecoversAfterTransientFailure(t *testing.T) {
	repo := newFakeRepo(placedMessage(t, 1))
	p := newTestProcessor(repo, 3)
	p.RegisterHandler(models.EventOrderPlaced, &flakyHandler{failures: 1})
	ctx := context.Background()

	require.NoError(t, p.processBatch(ctx))
	require.NoError(t, p.processBatch(ctx))
	assert.Equal(t, models.OutboxStatusCompleted, repo.status(1))
}

func TestProcessorParksUnknownEventType(t *testing.T) {
	msg := placedMessage(t, 1)
	msg.EventType = "order_shipped"
	repo := newFakeRepo(msg)

	require.NoError(t, newTestProcessor(repo, 3).processBatch(context.Background()))
	assert.Equal(t, models.OutboxStatusFailed, repo.status(1))
}

func TestProcessorStartStop(t *testing.T) {
	p := NewProcessor(newFakeRepo(), ProcessorConfig{PollingInterval: 5 * time.Millisecond, BatchSize: 1, MaxRetries: 1}, logger.NewNopLogger())
	p.Start()
	p.Start()
	time.Sleep(20 * time.Millisecond)
	p.Stop()
	p.Stop()
}

func TestKafkaHandlerPublishesKeyedByOrder(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if len(val) == 0 {
			return errors.New("empty payload")
		}
		return nil
	})

	producer := kafka.NewProducerWith(sp, logger.NewNopLogger())
	h := NewKafkaHandler(producer, "storefront.orders", logger.NewNopLogger())

	require.NoError(t, h.HandleMessage(context.Background(), placedMessage(t, 1)))
	require.NoError(t, producer.Close())
}

func TestKafkaHandlerSurfacesBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	h := NewKafkaHandler(kafka.NewProducerWith(sp, logger.NewNopLogger()), "storefront.orders", logger.NewNopLogger())

	err := h.HandleMessage(context.Background(), placedMessage(t, 1))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sp.Close())
}
