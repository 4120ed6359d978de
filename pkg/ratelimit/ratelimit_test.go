package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTokenBucketDrainsAndRefills(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	tb := NewTokenBucketWithClock(2, 1, clock.now)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, time.Second, tb.RetryAfter())

	clock.advance(500 * time.Millisecond)
	assert.False(t, tb.Allow())
	assert.InDelta(t, 0.5, tb.Available(), 1e-9)

	clock.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow())

	clock.advance(time.Hour)
	assert.Equal(t, 2.0, tb.Available())
}

func TestTokenBucketReset(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	tb := NewTokenBucketWithClock(1, 0, clock.now)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestIPRateLimiterIsPerKey(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newIPRateLimiter(1, 1, clock.now)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Equal(t, 2, l.Size())
}

func TestIPRateLimiterEvictsIdle(t *testing.T) {
	clock := &manualClock{t: time.Unix(0, 0)}
	l := newIPRateLimiter(1, 1, clock.now)

	l.Allow("10.0.0.1")
	clock.advance(5 * time.Minute)
	l.Allow("10.0.0.2")
	clock.advance(6 * time.Minute)

	assert.Equal(t, 1, l.evictIdle())
	assert.Equal(t, 1, l.Size())
}

func TestIPRateLimiterStopTwice(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	l.Stop()
	l.Stop()
}
