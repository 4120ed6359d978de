package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vaidashi/storefront-orders/internal/api"
	"github.com/vaidashi/storefront-orders/internal/config"
	"github.com/vaidashi/storefront-orders/internal/database"
	"github.com/vaidashi/storefront-orders/internal/docstore"
	"github.com/vaidashi/storefront-orders/internal/handlers"
	"github.com/vaidashi/storefront-orders/internal/lifecycle"
	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/internal/outbox"
	"github.com/vaidashi/storefront-orders/internal/repository"
	"github.com/vaidashi/storefront-orders/internal/service"
	"github.com/vaidashi/storefront-orders/internal/session"
	"github.com/vaidashi/storefront-orders/pkg/kafka"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// eventPipeline is the optional outbox, publisher and consumer trio
type eventPipeline struct {
	db        *database.Database
	repo      *repository.OutboxRepository
	processor *outbox.Processor
	producer  *kafka.Producer
	consumer  *kafka.Consumer
}

func main() {
	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewLogger(cfg.LogLevel)
	l.Info("Starting order service...", "env", cfg.Env, "docstore", cfg.DocStore.BaseURL)

	client := docstore.NewClient(cfg.DocStore.BaseURL, docstore.Options{
		Timeout:     cfg.DocStore.Timeout,
		MaxAttempts: cfg.DocStore.MaxAttempts,
	}, l)

	orderRepo := repository.NewOrderRepository(client, cfg.DocStore.OptimisticLocking, l)
	cartRepo := repository.NewCartRepository(client, cfg.DocStore.OptimisticLocking, l)
	userRepo := repository.NewUserRepository(client, cfg.DocStore.OptimisticLocking, l)
	productRepo := repository.NewProductRepository(client, l)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	healthChecks := map[string]api.HealthCheck{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	var events service.EventRecorder = service.NopRecorder{}
	var pipeline *eventPipeline

	if cfg.Outbox.Enabled {
		pipeline, err = startEventPipeline(cfg, l)
		if err != nil {
			l.Error("Failed to start order event pipeline", "error", err)
			os.Exit(1)
		}
		events = service.NewOutboxRecorder(pipeline.repo, l)
		healthChecks["postgres"] = pipeline.db.Ping
	}

	guard := service.NewGuard(3, l)

	deps := api.Dependencies{
		Orders: service.NewOrderService(orderRepo, guard, service.OrderServiceConfig{
			Policy: lifecycle.NewPolicy(cfg.Lifecycle.CancelWindowHours, cfg.Lifecycle.StageDurationHours),
			Events: events,
		}, l),
		Carts:           service.NewCartService(cartRepo, guard, l),
		Auth:            service.NewAuthService(userRepo, session.NewRedisStore(rdb, cfg.Session.TTL, l), guard, l),
		Catalog:         service.NewCatalogService(productRepo, l),
		DocStoreBreaker: client.Breaker(),
		HealthChecks:    healthChecks,
	}
	if pipeline != nil {
		deps.Outbox = pipeline.repo
	}

	server := api.NewServer(cfg, deps, l)

	// Start the server in a goroutine
	go func() {
		l.Info(fmt.Sprintf("Server is starting on port %d", cfg.Port))

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			l.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown via interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("Shutting down server...")

	// Create a context with a timeout for the shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Error("Server forced to shutdown:", "error", err)
	}

	if pipeline != nil {
		pipeline.stop(l)
	}

	if err := rdb.Close(); err != nil {
		l.Error("Failed to close redis client", "error", err)
	}

	l.Info("Server exiting")
}

// startEventPipeline migrates the outbox table and starts the processor. Kafka
// is optional: without brokers, events are only logged.
func startEventPipeline(cfg *config.Config, l logger.Logger) (*eventPipeline, error) {
	db, err := database.New(cfg, l)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}

	p := &eventPipeline{db: db, repo: repository.NewOutboxRepository(db.DB, l)}

	p.processor = outbox.NewProcessor(p.repo, outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollingInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	}, l)

	var handler outbox.MessageHandler = outbox.NewLoggingHandler(l)

	if len(cfg.Kafka.Brokers) > 0 {
		p.producer, err = kafka.NewProducer(cfg.Kafka.Brokers, l)
		if err != nil {
			p.stop(l)
			return nil, err
		}
		handler = outbox.NewKafkaHandler(p.producer, cfg.Kafka.OrdersTopic, l)

		p.consumer, err = kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.OrdersTopic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, l)
		if err != nil {
			p.stop(l)
			return nil, err
		}
		p.consumer.RegisterHandler(cfg.Kafka.OrdersTopic, handlers.NewOrderEventsHandler(l))

		if err := p.consumer.Start(); err != nil {
			p.stop(l)
			return nil, err
		}
	}

	p.processor.RegisterHandler(models.EventOrderPlaced, handler)
	p.processor.RegisterHandler(models.EventOrderCancelled, handler)
	p.processor.Start()

	return p, nil
}

// stop releases whatever part of the pipeline was started
func (p *eventPipeline) stop(l logger.Logger) {
	if p.processor != nil {
		p.processor.Stop()
	}
	if p.consumer != nil {
		if err := p.consumer.Stop(); err != nil {
			l.Error("Failed to stop kafka consumer", "error", err)
		}
	}
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			l.Error("Failed to close kafka producer", "error", err)
		}
	}
	if err := p.db.Close(); err != nil {
		l.Error("Failed to close database", "error", err)
	}
}
