package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/storefront-orders/internal/metrics"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// MessageHandler defines the interface for handling outbox messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// Repository is the outbox table as seen by the processor
type Repository interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	MarkAsProcessing(ctx context.Context, id int64) error
	MarkAsPending(ctx context.Context, id int64, errorMessage string) error
	MarkAsCompleted(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string) error
}

// Processor publishes queued order events
type Processor struct {
	outboxRepo      Repository
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	// MaxRetries is the number of attempts after which a message is parked as failed
	MaxRetries int
}

// NewProcessor creates a new Processor
func NewProcessor(outboxRepo Repository, config ProcessorConfig, logger logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}

	return &Processor{
		outboxRepo:      outboxRepo,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the outbox processor
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.processOutbox()
	}()

	p.logger.Info("Outbox processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize)
}

// Stop stops the outbox processor and waits for the current batch
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Outbox processor stopped")
}

func (p *Processor) processOutbox() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.processBatch(p.ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", "error", err)
			}
		}
	}
}

func (p *Processor) processBatch(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, p.pollingInterval)
	defer cancel()

	messages, err := p.outboxRepo.GetPendingMessages(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending messages to process")
		return nil
	}

	p.logger.Info("Processing batch of outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType)
			continue
		}
	}

	return nil
}

func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	if err := p.outboxRepo.MarkAsProcessing(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as processing: %w", err)
	}
	attempt := msg.ProcessingAttempts + 1

	handler, exists := p.handlers[msg.EventType]
	if !exists {
		errorMsg := fmt.Sprintf("no handler registered for event type: %s", msg.EventType)
		p.park(ctx, msg, errorMsg)
		return fmt.Errorf("%s", errorMsg)
	}

	if err := handler.HandleMessage(ctx, msg); err != nil {
		if attempt >= p.maxRetries {
			p.park(ctx, msg, fmt.Sprintf("max retries reached: %s", err.Error()))
			return fmt.Errorf("message failed after %d attempts: %w", attempt, err)
		}

		metrics.RecordOutboxResult(msg.EventType, "retry")
		p.logger.Warn("Message processing failed, will retry",
			"error", err,
			"messageID", msg.ID,
			"attempt", attempt)

		if markErr := p.outboxRepo.MarkAsPending(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("Failed to requeue message", "error", markErr, "messageID", msg.ID)
		}
		return err
	}

	if err := p.outboxRepo.MarkAsCompleted(ctx, msg.ID); err != nil {
		p.logger.Error("Failed to mark message as completed", "error", err, "messageID", msg.ID)
		return fmt.Errorf("failed to mark message as completed: %w", err)
	}

	metrics.RecordOutboxResult(msg.EventType, "published")
	p.logger.Info("Successfully processed message",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

// park marks a message as failed; it stays there until requeued
func (p *Processor) park(ctx context.Context, msg *models.OutboxMessage, reason string) {
	metrics.RecordOutboxResult(msg.EventType, "failed")
	p.logger.Error("Parking outbox message", "reason", reason, "messageID", msg.ID, "attempts", msg.ProcessingAttempts+1)

	if err := p.outboxRepo.MarkAsFailed(ctx, msg.ID, reason); err != nil {
		p.logger.Error("Failed to mark message as failed", "error", err, "messageID", msg.ID)
	}
}
