package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiting algorithm
type TokenBucket struct {
	tokens         float64
	maxTokens      float64
	refillRate     float64
	lastRefillTime time.Time
	now            func() time.Time
	mutex          sync.Mutex
}

// NewTokenBucket creates a full bucket refilled at refillRate tokens per second
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return NewTokenBucketWithClock(maxTokens, refillRate, time.Now)
}

// NewTokenBucketWithClock creates a bucket reading time from now
func NewTokenBucketWithClock(maxTokens, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: now(),
		now:            now,
	}
}

// Allow checks if a request can proceed based on the token bucket algorithm
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN takes n tokens if they are available
func (tb *TokenBucket) AllowN(n float64) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// refill must be called with the mutex held
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.lastRefillTime = now
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
}

// RetryAfter is how long until one token is available
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		return 0
	}
	if tb.refillRate <= 0 {
		return time.Hour
	}
	return time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
}

// Reset resets the token bucket to its initial state
func (tb *TokenBucket) Reset() {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.tokens = tb.maxTokens
	tb.lastRefillTime = tb.now()
}

// Available returns the number of tokens that could be taken now
func (tb *TokenBucket) Available() float64 {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	elapsed := tb.now().Sub(tb.lastRefillTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
}

// MaxTokens is the bucket capacity
func (tb *TokenBucket) MaxTokens() float64 {
	return tb.maxTokens
}

// RefillRate is the refill speed in tokens per second
func (tb *TokenBucket) RefillRate() float64 {
	return tb.refillRate
}

// idleSince reports when the bucket was last touched
func (tb *TokenBucket) idleSince() time.Time {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.lastRefillTime
}
