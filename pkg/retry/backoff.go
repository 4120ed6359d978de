package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for backoff strategies
type BackoffStrategy interface {
	// NextBackoff returns the delay before the attempt following the given one
	NextBackoff(attempt int) time.Duration
}

// ConstantBackoff waits the same interval between every attempt
type ConstantBackoff struct {
	Interval time.Duration
}

// NextBackoff returns the constant backoff interval
func (b *ConstantBackoff) NextBackoff(attempt int) time.Duration {
	return b.Interval
}

// ExponentialBackoff implements an exponential backoff strategy with jitter
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64 // fraction of the computed delay added at random
}

// NextBackoff calculates the next exponentially increasing backoff duration with jitter
func (b *ExponentialBackoff) NextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(attempt-1))

	if b.JitterFactor > 0 {
		backoff += rand.Float64() * b.JitterFactor * backoff
	}

	if b.MaxInterval > 0 && backoff > float64(b.MaxInterval) {
		backoff = float64(b.MaxInterval)
	}

	return time.Duration(backoff)
}

// LinearBackoff grows the delay by Step per attempt up to MaxInterval
type LinearBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Step            time.Duration
}

// NextBackoff calculates the next linear backoff duration
func (b *LinearBackoff) NextBackoff(attempt int) time.Duration {
	backoff := b.InitialInterval + (b.Step * time.Duration(attempt-1))

	if b.MaxInterval > 0 && backoff > b.MaxInterval {
		return b.MaxInterval
	}

	return backoff
}

// NewDefaultExponentialBackoff creates the backoff used for document store reads
func NewDefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      1.5,
		JitterFactor:    0.2,
	}
}
