package sluice

import (
	"context"
	"sync"
	"time"
)

// BatchCollector buffers records and flushes them to a sink once a
// configured number have accumulated. Flushes are guarded by a Breaker:
// a denied flush keeps the buffer intact, while an admitted flush takes
// the whole buffer before the write starts, so a failed write loses its
// batch rather than blocking newer records behind it.
type BatchCollector[T any] struct {
	sink    Sink[T]
	size    int
	breaker Breaker
	metrics MetricsHandler

	mu      sync.Mutex
	pending []T
}

// NewBatchCollector creates a collector that flushes every size records.
// Panics if sink or breaker is nil or size is <= 0.
func NewBatchCollector[T any](sink Sink[T], size int, breaker Breaker, opts ...BatchOption) *BatchCollector[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if size <= 0 {
		panic("sluice: batch size must be positive")
	}
	if breaker == nil {
		panic("sluice: breaker cannot be nil")
	}

	config := defaultBatchConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &BatchCollector[T]{
		sink:    sink,
		size:    size,
		breaker: breaker,
		metrics: config.metricsHandler,
		pending: make([]T, 0, size),
	}
}

// Accept implements Collector. The record is buffered first; if that
// fills the batch, a flush is attempted and its outcome returned. A
// flush error therefore covers the record just accepted as well.
func (c *BatchCollector[T]) Accept(ctx context.Context, record T) error {
	c.mu.Lock()
	c.pending = append(c.pending, record)
	full := len(c.pending) >= c.size
	c.mu.Unlock()

	c.metrics.RecordsAccepted(1)

	if !full {
		return nil
	}
	return c.flush(ctx)
}

// Flush implements Collector by writing out whatever is buffered,
// regardless of batch size. An empty buffer and a breaker denial are
// both silent no-ops; denied records stay buffered for a later attempt.
func (c *BatchCollector[T]) Flush(ctx context.Context) error {
	return c.flush(ctx)
}

func (c *BatchCollector[T]) flush(ctx context.Context) error {
	c.mu.Lock()
	buffered := len(c.pending)
	c.mu.Unlock()

	if buffered == 0 {
		return nil
	}

	// Admission is decided before the buffer is touched so that a
	// denied flush keeps its records.
	if !c.breaker.Allow() {
		c.metrics.FlushDenied(buffered)
		return nil
	}

	c.mu.Lock()
	batch := c.pending
	c.pending = make([]T, 0, c.size)
	c.mu.Unlock()

	// A concurrent flush may have taken the buffer already.
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := c.sink.Write(ctx, batch)
	c.metrics.FlushDuration(time.Since(start))

	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.FlushFailed(len(batch))
		return &FlushError{Count: len(batch), Err: err}
	}

	c.breaker.RecordSuccess()
	c.metrics.BatchFlushed(len(batch))
	return nil
}

// Stop implements Collector by discarding all buffered records without
// flushing. The collector stays usable afterwards; Stop only clears.
func (c *BatchCollector[T]) Stop() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Pending returns the number of buffered records.
func (c *BatchCollector[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Breaker returns the collector's breaker for inspection.
func (c *BatchCollector[T]) Breaker() Breaker {
	return c.breaker
}
