package sluice

import (
	"sync"
	"testing"
	"time"
)

func testBreakerConfig(threshold int, timeout time.Duration, clock Clock) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold: threshold,
		Timeout:   timeout,
		Clock:     clock,
	}
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	if cb.State() != CircuitClosed {
		t.Errorf("Initial state = %v, want CircuitClosed", cb.State())
	}
	if !cb.Allow() {
		t.Error("CircuitClosed should allow flushes")
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(3, time.Minute, clock))

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() == CircuitOpen {
		t.Fatal("Circuit opened before reaching the threshold")
	}

	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Errorf("State = %v, want CircuitOpen after 3 failures", cb.State())
	}
	if cb.Allow() {
		t.Error("CircuitOpen should deny flushes before the timeout")
	}
}

func TestCircuitBreaker_ReclosesAfterTimeout(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(2, time.Minute, clock))

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Fatalf("Expected CircuitOpen, got %v", cb.State())
	}

	clock.Advance(59 * time.Second)
	if cb.Allow() {
		t.Error("Should deny one second before the timeout elapses")
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Error("Should allow once the timeout has elapsed")
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State = %v, want CircuitClosed after the probing Allow", cb.State())
	}
}

func TestCircuitBreaker_ReclosingResetsFailures(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(2, time.Minute, clock))

	cb.RecordFailure()
	cb.RecordFailure()
	clock.Advance(time.Minute)

	if !cb.Allow() {
		t.Fatal("Expected the probing Allow to be admitted")
	}

	// The counter restarted; a single failure must not re-open.
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Error("One failure after re-close should not re-open the circuit")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Error("Reaching the threshold again should re-open the circuit")
	}
}

func TestCircuitBreaker_SuccessClosesFromOpen(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(2, time.Hour, clock))

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Fatalf("Expected CircuitOpen, got %v", cb.State())
	}

	// A success recorded while still open closes the circuit without
	// waiting for the timeout.
	cb.RecordSuccess()

	if cb.State() != CircuitClosed {
		t.Errorf("State = %v, want CircuitClosed after RecordSuccess", cb.State())
	}
	if !cb.Allow() {
		t.Error("Should allow flushes after the circuit was closed by a success")
	}
	if cb.Failures() != 0 {
		t.Errorf("Failures = %d, want 0 after RecordSuccess", cb.Failures())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(3, time.Minute, clock))

	cb.RecordFailure()
	cb.RecordFailure()

	cb.RecordSuccess()

	// Again three failures are needed to open.
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CircuitClosed {
		t.Error("Circuit should still be closed (failure count was reset)")
	}

	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Error("Circuit should be open after 3 consecutive failures")
	}
}

func TestCircuitBreaker_ZeroTimeout(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(1, 0, clock))

	cb.RecordFailure()

	if cb.State() != CircuitOpen {
		t.Fatalf("Expected CircuitOpen, got %v", cb.State())
	}

	// With a zero timeout the very next Allow re-admits.
	if !cb.Allow() {
		t.Error("Zero timeout should re-admit immediately")
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State = %v, want CircuitClosed", cb.State())
	}
}

func TestCircuitBreaker_FailureWhileOpenRestartsCooldown(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(testBreakerConfig(1, time.Minute, clock))

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("Expected CircuitOpen, got %v", cb.State())
	}

	clock.Advance(50 * time.Second)
	cb.RecordFailure()

	// The cool-down restarted at the second failure.
	clock.Advance(30 * time.Second)
	if cb.Allow() {
		t.Error("Should still deny: the second failure restarted the cool-down")
	}

	clock.Advance(30 * time.Second)
	if !cb.Allow() {
		t.Error("Should allow after a full timeout since the last failure")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []struct{ from, to CircuitState }

	clock := NewManualClock(time.Unix(1000, 0))
	config := CircuitBreakerConfig{
		Threshold: 2,
		Timeout:   time.Minute,
		Clock:     clock,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, struct{ from, to CircuitState }{from, to})
		},
	}
	cb := NewCircuitBreaker(config)

	cb.RecordFailure()
	cb.RecordFailure() // Closed -> Open

	clock.Advance(time.Minute)
	cb.Allow() // Open -> Closed

	if len(transitions) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(transitions))
	}

	expected := []struct{ from, to CircuitState }{
		{CircuitClosed, CircuitOpen},
		{CircuitOpen, CircuitClosed},
	}

	for i, exp := range expected {
		if transitions[i].from != exp.from || transitions[i].to != exp.to {
			t.Errorf("Transition %d: got %v->%v, want %v->%v",
				i, transitions[i].from, transitions[i].to, exp.from, exp.to)
		}
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(100, 100*time.Millisecond, SystemClock()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cb.Allow()
				if j%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}
		}()
	}
	wg.Wait()

	// Should not panic and state should be valid
	state := cb.State()
	if state != CircuitClosed && state != CircuitOpen {
		t.Errorf("Invalid state after concurrent access: %v", state)
	}
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	config := DefaultCircuitBreakerConfig()

	if config.Threshold != 5 {
		t.Errorf("Threshold = %d, want 5", config.Threshold)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Timeout)
	}
	if config.Clock == nil {
		t.Error("Clock should default to the system clock")
	}
}

func TestNewCircuitBreaker_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config CircuitBreakerConfig
	}{
		{"zero threshold", testBreakerConfig(0, time.Minute, SystemClock())},
		{"negative timeout", testBreakerConfig(1, -time.Second, SystemClock())},
		{"nil clock", testBreakerConfig(1, time.Minute, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Expected panic for invalid config")
				}
			}()
			NewCircuitBreaker(tt.config)
		})
	}
}
