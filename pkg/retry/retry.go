package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaidashi/storefront-orders/pkg/logger"
)

// RetryableFunc defines a function that can be retried
type RetryableFunc func() error

// RetryConfig holds the configuration for retrying operations
type RetryConfig struct {
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	RetryableErrors []error // empty means every error is retried
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Retry returns it immediately without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry retries the given function according to the provided configuration
func Retry(ctx context.Context, fn RetryableFunc, cfg *RetryConfig) error {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled by context: %w", err)
		}

		err := fn()

		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err

		if attempt == maxAttempts {
			break
		}

		if !isRetryable(err, cfg.RetryableErrors) {
			log.Warn("Non-retryable error encountered, giving up",
				"error", err,
				"attempt", attempt)
			return err
		}

		backoff := time.Duration(0)
		if cfg.BackoffStrategy != nil {
			backoff = cfg.BackoffStrategy.NextBackoff(attempt)
		}

		log.Info("Retrying after error",
			"error", err,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled by context during backoff: %w", ctx.Err())
		}
	}

	if maxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("all %d retry attempts failed, last error: %w", maxAttempts, lastErr)
}

// isRetryable checks if an error is retryable
func isRetryable(err error, retryableErrors []error) bool {
	if len(retryableErrors) == 0 {
		return true
	}

	for _, retryableErr := range retryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return false
}
