package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return New(Config{
		Name:             "docstore",
		FailureThreshold: 2,
		ResetTimeout:     10 * time.Second,
		HalfOpenMaxCalls: 1,
		Now:              clock.Now,
	})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)

	cb.Failure()
	assert.Equal(t, StateClosed, cb.State())
	cb.Failure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerHalfOpenThenClosed(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	cb.Failure()
	cb.Failure()

	clock.Advance(11 * time.Second)

	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one trial request allowed while half-open")

	cb.Success()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, int64(0), cb.Metrics().FailureCount)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	cb.Failure()
	cb.Failure()
	clock.Advance(11 * time.Second)
	assert.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecuteIgnoresUncountableErrors(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := newTestBreaker(clock)
	notFound := errors.New("not found")

	for i := 0; i < 5; i++ {
		err := cb.Execute(func() error { return notFound }, func(err error) bool { return err != notFound })
		assert.Same(t, notFound, err)
	}
	assert.Equal(t, StateClosed, cb.State())

	boom := errors.New("boom")
	_ = cb.Execute(func() error { return boom }, nil)
	_ = cb.Execute(func() error { return boom }, nil)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }, nil), ErrOpen)
}

func TestReset(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := newTestBreaker(clock)
	cb.Failure()
	cb.Failure()

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.Metrics().State)
}

func TestRetryAfter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)

	assert.Zero(t, cb.RetryAfter())

	cb.Failure()
	cb.Failure()
	assert.Equal(t, 10*time.Second, cb.RetryAfter())

	clock.Advance(4 * time.Second)
	assert.Equal(t, 6*time.Second, cb.RetryAfter())

	clock.Advance(7 * time.Second)
	assert.Zero(t, cb.RetryAfter())
	assert.Equal(t, StateOpen, cb.State())
}
