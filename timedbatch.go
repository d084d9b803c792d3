package sluice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TimedCollector decorates a Collector with a flush deadline: once a
// record has been accepted, a timer guarantees the buffer is flushed
// within the configured interval even if it never fills. Only the first
// accept after an idle period arms the timer; later accepts ride on the
// one already pending, so a steady trickle cannot postpone the flush
// forever.
type TimedCollector[T any] struct {
	inner    Collector[T]
	interval time.Duration
	logger   *slog.Logger
	handler  func(error)

	mu         sync.Mutex
	timer      *time.Timer
	armed      bool
	generation uint64
}

// NewTimedCollector wraps inner with an interval-based flush trigger.
// Panics if inner is nil or interval is <= 0.
func NewTimedCollector[T any](inner Collector[T], interval time.Duration, opts ...TimedOption) *TimedCollector[T] {
	if inner == nil {
		panic("sluice: collector cannot be nil")
	}
	if interval <= 0 {
		panic("sluice: flush interval must be positive")
	}

	config := defaultTimedConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &TimedCollector[T]{
		inner:    inner,
		interval: interval,
		logger:   config.logger,
		handler:  config.errorHandler,
	}
}

// Accept implements Collector. The record is handed to the wrapped
// collector first; only a successful accept arms the flush timer.
func (t *TimedCollector[T]) Accept(ctx context.Context, record T) error {
	if err := t.inner.Accept(ctx, record); err != nil {
		return err
	}
	t.arm()
	return nil
}

// Flush implements Collector. A manual flush cancels the pending timer
// before delegating, so the same records are never flushed twice.
func (t *TimedCollector[T]) Flush(ctx context.Context) error {
	t.disarm()
	return t.inner.Flush(ctx)
}

// Stop implements Collector. It cancels the pending timer and stops the
// wrapped collector, discarding whatever it holds.
func (t *TimedCollector[T]) Stop() {
	t.disarm()
	t.inner.Stop()
}

func (t *TimedCollector[T]) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		return
	}

	t.armed = true
	t.generation++
	gen := t.generation
	t.timer = time.AfterFunc(t.interval, func() {
		t.fire(gen)
	})
}

func (t *TimedCollector[T]) disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return
	}

	t.armed = false
	// Invalidate a callback that already left AfterFunc but has not
	// taken the lock yet.
	t.generation++
	t.timer.Stop()
	t.timer = nil
}

func (t *TimedCollector[T]) fire(gen uint64) {
	t.mu.Lock()
	if !t.armed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.timer = nil
	t.mu.Unlock()

	// Timer flushes run detached from any caller context.
	if err := t.inner.Flush(context.Background()); err != nil {
		t.logger.Error("interval flush failed", "error", err)
		t.handler(err)
	}
}
