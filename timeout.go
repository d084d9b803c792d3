package sluice

import (
	"context"
	"errors"
	"time"
)

// ErrWriteTimeout is returned when a sink write times out.
var ErrWriteTimeout = errors.New("sluice: sink write timed out")

// TimeoutSink wraps a sink with a per-write timeout so a hung sink
// cannot stall the flush path indefinitely.
type TimeoutSink[T any] struct {
	sink    Sink[T]
	timeout time.Duration
}

// NewTimeoutSink creates a sink whose writes are bounded by timeout.
// Panics if sink is nil or timeout is <= 0.
func NewTimeoutSink[T any](sink Sink[T], timeout time.Duration) *TimeoutSink[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if timeout <= 0 {
		panic("sluice: timeout must be positive")
	}
	return &TimeoutSink[T]{
		sink:    sink,
		timeout: timeout,
	}
}

// Write implements Sink with a deadline. A write that exceeds the
// timeout reports ErrWriteTimeout; the batch counts as failed.
func (t *TimeoutSink[T]) Write(ctx context.Context, records []T) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := t.sink.Write(ctx, records)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrWriteTimeout
	}
	return err
}

// TimeoutMiddleware creates a middleware that adds a write timeout.
func TimeoutMiddleware[T any](timeout time.Duration) Middleware[T] {
	if timeout <= 0 {
		panic("sluice: timeout must be positive")
	}
	return func(sink Sink[T]) Sink[T] {
		return NewTimeoutSink(sink, timeout)
	}
}

// ContextSink allows adding values to the context before writing.
type ContextSink[T any] struct {
	sink    Sink[T]
	prepare func(ctx context.Context, records []T) context.Context
}

// NewContextSink creates a sink that enriches the context.
// The prepare function can add values to the context before the write.
func NewContextSink[T any](sink Sink[T], prepare func(ctx context.Context, records []T) context.Context) *ContextSink[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if prepare == nil {
		panic("sluice: prepare cannot be nil")
	}
	return &ContextSink[T]{
		sink:    sink,
		prepare: prepare,
	}
}

// Write implements Sink with context enrichment.
func (c *ContextSink[T]) Write(ctx context.Context, records []T) error {
	return c.sink.Write(c.prepare(ctx, records), records)
}
