package sluice

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means flushes are admitted normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit has tripped and flushes are denied.
	CircuitOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker is the admission contract consulted before a flush.
// *CircuitBreaker is the standard implementation.
type Breaker interface {
	// Allow reports whether the next flush may proceed.
	Allow() bool

	// RecordSuccess reports a successful sink write.
	RecordSuccess()

	// RecordFailure reports a failed sink write.
	RecordFailure()
}

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before opening
	// the circuit.
	Threshold int

	// Timeout is how long the circuit stays open before a flush is
	// admitted again. A zero timeout re-admits on the next attempt.
	Timeout time.Duration

	// Clock supplies the time used for the open-state cool-down.
	Clock Clock

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold: 5,
		Timeout:   30 * time.Second,
		Clock:     SystemClock(),
	}
}

// CircuitBreaker implements a two-state circuit breaker. There is no
// half-open state: once the open timeout has elapsed, the next Allow
// call is itself the recovery probe. It closes the circuit and admits
// the flush; the write that follows re-opens it on failure.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu       sync.RWMutex
	state    CircuitState
	failures int
	openedAt time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
// Panics if the threshold is <= 0, the timeout is < 0, or the clock is nil.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold <= 0 {
		panic("sluice: failure threshold must be positive")
	}
	if config.Timeout < 0 {
		panic("sluice: timeout cannot be negative")
	}
	if config.Clock == nil {
		panic("sluice: clock cannot be nil")
	}
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Allow reports whether a flush should be admitted. While the circuit
// is open it returns false until the timeout has elapsed; at that point
// it transitions back to closed, resets the failure count, and admits
// the caller.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.config.Clock.Now().Sub(cb.openedAt) >= cb.config.Timeout {
			cb.transitionTo(CircuitClosed)
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess records a successful write. It resets the failure count
// and closes the circuit regardless of the current state, so a success
// observed while the circuit is still open ends the outage early.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.transitionTo(CircuitClosed)
}

// RecordFailure records a failed write. Reaching the threshold opens
// the circuit; a failure recorded while already open restarts the
// cool-down.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.config.Threshold {
		cb.openedAt = cb.config.Clock.Now()
		cb.transitionTo(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	if cb.state == state {
		return
	}

	oldState := cb.state
	cb.state = state
	if state == CircuitClosed {
		cb.failures = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, state)
	}
}
