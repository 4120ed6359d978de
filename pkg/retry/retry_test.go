package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func testConfig(attempts int, retryable ...error) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond},
		RetryableErrors: retryable,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, testConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return errFlaky
	}, testConfig(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	other := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return other
	}, testConfig(5, errFlaky))

	assert.Same(t, other, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPermanent(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return Permanent(errFlaky)
	}, testConfig(5))

	assert.Same(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func() error { return nil }, testConfig(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialBackoffCapped(t *testing.T) {
	b := &ExponentialBackoff{InitialInterval: 100 * time.Millisecond, MaxInterval: 250 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.NextBackoff(1))
	assert.Equal(t, 200*time.Millisecond, b.NextBackoff(2))
	assert.Equal(t, 250*time.Millisecond, b.NextBackoff(3))
}

func TestLinearBackoff(t *testing.T) {
	b := &LinearBackoff{InitialInterval: 10 * time.Millisecond, Step: 5 * time.Millisecond, MaxInterval: 18 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, b.NextBackoff(1))
	assert.Equal(t, 15*time.Millisecond, b.NextBackoff(2))
	assert.Equal(t, 18*time.Millisecond, b.NextBackoff(3))
}
