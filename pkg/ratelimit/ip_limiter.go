package ratelimit

import (
	"sync"
	"time"
)

// IPRateLimiter keeps one token bucket per client key. Buckets idle for longer
// than the idle timeout are evicted by a background sweep.
type IPRateLimiter struct {
	limiters    map[string]*TokenBucket
	mu          sync.Mutex
	maxTokens   float64
	refillRate  float64
	idleTimeout time.Duration
	now         func() time.Time
	stopOnce    sync.Once
	stopChan    chan struct{}
}

// NewIPRateLimiter creates a limiter and starts its cleanup loop
func NewIPRateLimiter(maxTokens, refillRate float64) *IPRateLimiter {
	limiter := newIPRateLimiter(maxTokens, refillRate, time.Now)
	go limiter.cleanupLoop(time.Minute)
	return limiter
}

func newIPRateLimiter(maxTokens, refillRate float64, now func() time.Time) *IPRateLimiter {
	idle := 10 * time.Minute
	if refillRate > 0 {
		// a bucket idle this long has refilled completely anyway
		if full := time.Duration(maxTokens / refillRate * float64(time.Second)); full > idle {
			idle = full
		}
	}

	return &IPRateLimiter{
		limiters:    make(map[string]*TokenBucket),
		maxTokens:   maxTokens,
		refillRate:  refillRate,
		idleTimeout: idle,
		now:         now,
		stopChan:    make(chan struct{}),
	}
}

// Allow checks if a request from the given IP can proceed
func (ipl *IPRateLimiter) Allow(ip string) bool {
	return ipl.getLimiter(ip).Allow()
}

// RetryAfter is how long the given IP has to wait for its next token
func (ipl *IPRateLimiter) RetryAfter(ip string) time.Duration {
	return ipl.getLimiter(ip).RetryAfter()
}

// Size is the number of tracked clients
func (ipl *IPRateLimiter) Size() int {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()
	return len(ipl.limiters)
}

func (ipl *IPRateLimiter) getLimiter(ip string) *TokenBucket {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	limiter, exists := ipl.limiters[ip]
	if !exists {
		limiter = NewTokenBucketWithClock(ipl.maxTokens, ipl.refillRate, ipl.now)
		ipl.limiters[ip] = limiter
	}
	return limiter
}

// evictIdle drops the buckets not used within the idle timeout
func (ipl *IPRateLimiter) evictIdle() int {
	cutoff := ipl.now().Add(-ipl.idleTimeout)

	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	evicted := 0
	for ip, limiter := range ipl.limiters {
		if limiter.idleSince().Before(cutoff) {
			delete(ipl.limiters, ip)
			evicted++
		}
	}
	return evicted
}

func (ipl *IPRateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ipl.evictIdle()
		case <-ipl.stopChan:
			return
		}
	}
}

// Stop stops the cleanup loop
func (ipl *IPRateLimiter) Stop() {
	ipl.stopOnce.Do(func() { close(ipl.stopChan) })
}
