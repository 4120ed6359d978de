package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the state of the circuit breaker
type State int32

const (
	StateClosed   State = iota // requests flow
	StateHalfOpen              // probing whether the dependency recovered
	StateOpen                  // requests are refused
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// ErrOpen is returned by Execute while the circuit refuses calls
var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	state            int32
	failureThreshold int64
	resetTimeout     time.Duration
	halfOpenMaxCalls int64
	failureCount     int64
	halfOpenCalls    int64
	lastStateChange  time.Time
	now              func() time.Time
	mutex            sync.RWMutex
}

// Config configures a CircuitBreaker
type Config struct {
	Name             string
	FailureThreshold int64
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int64
	// Now overrides the clock, mostly for tests
	Now func() time.Time
}

// Metrics is a point-in-time snapshot of the breaker
type Metrics struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	FailureCount     int64     `json:"failure_count"`
	FailureThreshold int64     `json:"failure_threshold"`
	HalfOpenCalls    int64     `json:"half_open_calls"`
	ResetTimeout     string    `json:"reset_timeout"`
	LastStateChange  time.Time `json:"last_state_change"`
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.HalfOpenMaxCalls < 1 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		name:             cfg.Name,
		state:            int32(StateClosed),
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		halfOpenMaxCalls: cfg.HalfOpenMaxCalls,
		lastStateChange:  now(),
		now:              now,
	}
}

// Allow checks if a request is allowed based on the circuit breaker state
func (cb *CircuitBreaker) Allow() bool {
	switch State(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		cb.mutex.RLock()
		elapsed := cb.now().Sub(cb.lastStateChange)
		cb.mutex.RUnlock()

		if elapsed < cb.resetTimeout {
			return false
		}

		if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
			cb.mutex.Lock()
			cb.lastStateChange = cb.now()
			atomic.StoreInt64(&cb.halfOpenCalls, 0)
			cb.mutex.Unlock()
		}
		return cb.Allow()
	case StateHalfOpen:
		return atomic.AddInt64(&cb.halfOpenCalls, 1) <= cb.halfOpenMaxCalls
	default:
		return false
	}
}

// Success reports a successful operation
func (cb *CircuitBreaker) Success() {
	switch State(atomic.LoadInt32(&cb.state)) {
	case StateHalfOpen:
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateClosed)) {
			cb.transitioned()
			atomic.StoreInt64(&cb.failureCount, 0)
		}
	case StateClosed:
		atomic.StoreInt64(&cb.failureCount, 0)
	}
}

// Failure reports a failed operation
func (cb *CircuitBreaker) Failure() {
	switch State(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		if atomic.AddInt64(&cb.failureCount, 1) >= cb.failureThreshold {
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateClosed), int32(StateOpen)) {
				cb.transitioned()
			}
		}
	case StateHalfOpen:
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateHalfOpen), int32(StateOpen)) {
			cb.transitioned()
		}
	}
}

// Execute runs fn when the circuit allows it. Errors for which countable returns
// false (for example a 404 from a healthy dependency) do not trip the breaker.
func (cb *CircuitBreaker) Execute(fn func() error, countable func(error) bool) error {
	if !cb.Allow() {
		return ErrOpen
	}

	err := fn()

	if err != nil && (countable == nil || countable(err)) {
		cb.Failure()
		return err
	}

	cb.Success()
	return err
}

// Reset forces the breaker back to closed
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(StateClosed))
	atomic.StoreInt64(&cb.failureCount, 0)
	atomic.StoreInt64(&cb.halfOpenCalls, 0)
	cb.transitioned()
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	return State(atomic.LoadInt32(&cb.state))
}

// RetryAfter is how long the circuit stays open before it admits a trial request.
// It is zero unless the circuit is open.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	if cb.State() != StateOpen {
		return 0
	}

	cb.mutex.RLock()
	remaining := cb.resetTimeout - cb.now().Sub(cb.lastStateChange)
	cb.mutex.RUnlock()

	if remaining < 0 {
		return 0
	}
	return remaining
}

// Metrics returns a snapshot of the breaker
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mutex.RLock()
	lastChange := cb.lastStateChange
	cb.mutex.RUnlock()

	return Metrics{
		Name:             cb.name,
		State:            cb.State().String(),
		FailureCount:     atomic.LoadInt64(&cb.failureCount),
		FailureThreshold: cb.failureThreshold,
		HalfOpenCalls:    atomic.LoadInt64(&cb.halfOpenCalls),
		ResetTimeout:     cb.resetTimeout.String(),
		LastStateChange:  lastChange,
	}
}

func (cb *CircuitBreaker) transitioned() {
	cb.mutex.Lock()
	cb.lastStateChange = cb.now()
	cb.mutex.Unlock()
}
