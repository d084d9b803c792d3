package sluice

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueEmpty is returned when taking from an empty dead letter queue.
var ErrQueueEmpty = errors.New("sluice: dead letter queue is empty")

// FailedBatch wraps a batch with failure metadata. A collector drops
// the batch of a failed flush rather than retrying it, so a dead letter
// queue is the only place those records survive.
type FailedBatch[T any] struct {
	// Records is the batch that failed to write.
	Records []T

	// Err is the write error.
	Err error

	// FailedAt is when the write failed.
	FailedAt time.Time
}

// BatchQueue defines the interface for retaining failed batches.
type BatchQueue[T any] interface {
	// Append adds a failed batch to the queue.
	Append(ctx context.Context, batch FailedBatch[T]) error

	// Drain removes and returns up to limit batches in FIFO order.
	// Use limit=0 for all available.
	Drain(ctx context.Context, limit int) ([]FailedBatch[T], error)

	// Len returns the number of batches in the queue.
	Len(ctx context.Context) (int, error)
}

// InMemoryBatchQueue is a bounded in-memory batch queue for testing and
// development. Records are lost on restart; use a persistent
// implementation when the dead letters themselves matter.
type InMemoryBatchQueue[T any] struct {
	mu      sync.RWMutex
	batches []FailedBatch[T]
	maxSize int
}

// NewInMemoryBatchQueue creates an in-memory batch queue.
// Set maxSize to 0 for unlimited size.
func NewInMemoryBatchQueue[T any](maxSize int) *InMemoryBatchQueue[T] {
	return &InMemoryBatchQueue[T]{
		maxSize: maxSize,
		batches: make([]FailedBatch[T], 0),
	}
}

// Append adds a batch to the queue.
// If the queue is at max capacity, the oldest batch is evicted.
func (q *InMemoryBatchQueue[T]) Append(ctx context.Context, batch FailedBatch[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.batches) >= q.maxSize {
		q.batches = q.batches[1:]
	}

	q.batches = append(q.batches, batch)
	return nil
}

// Drain removes and returns up to limit batches in FIFO order.
// Use limit=0 for all batches.
func (q *InMemoryBatchQueue[T]) Drain(ctx context.Context, limit int) ([]FailedBatch[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.batches) {
		limit = len(q.batches)
	}

	result := make([]FailedBatch[T], limit)
	copy(result, q.batches[:limit])
	q.batches = q.batches[limit:]
	return result, nil
}

// TakeFirst removes and returns the oldest batch.
// Returns ErrQueueEmpty if the queue is empty.
func (q *InMemoryBatchQueue[T]) TakeFirst(ctx context.Context) (FailedBatch[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero FailedBatch[T]
	if len(q.batches) == 0 {
		return zero, ErrQueueEmpty
	}

	batch := q.batches[0]
	q.batches = q.batches[1:]
	return batch, nil
}

// Len returns the queue size.
func (q *InMemoryBatchQueue[T]) Len(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.batches), nil
}

// All returns a copy of all queued batches without removing them.
func (q *InMemoryBatchQueue[T]) All() []FailedBatch[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	result := make([]FailedBatch[T], len(q.batches))
	copy(result, q.batches)
	return result
}

// Clear removes all batches from the queue.
func (q *InMemoryBatchQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = q.batches[:0]
}

// DeadLetterSink wraps a sink so that batches it rejects are captured
// in a BatchQueue instead of vanishing. The write error is still
// returned unchanged, so the breaker sees the failure exactly as it
// would without the queue in place.
type DeadLetterSink[T any] struct {
	sink  Sink[T]
	queue BatchQueue[T]
}

// NewDeadLetterSink creates a sink that captures failed batches.
// Panics if sink or queue is nil.
func NewDeadLetterSink[T any](sink Sink[T], queue BatchQueue[T]) *DeadLetterSink[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if queue == nil {
		panic("sluice: queue cannot be nil")
	}
	return &DeadLetterSink[T]{
		sink:  sink,
		queue: queue,
	}
}

// Write implements Sink. On failure the batch is appended to the queue
// and the original error returned; a queue failure is joined onto it so
// the caller learns the records are truly gone.
func (d *DeadLetterSink[T]) Write(ctx context.Context, records []T) error {
	err := d.sink.Write(ctx, records)
	if err == nil {
		return nil
	}

	batch := FailedBatch[T]{
		Records:  records,
		Err:      err,
		FailedAt: time.Now(),
	}
	if appendErr := d.queue.Append(ctx, batch); appendErr != nil {
		return errors.Join(err, appendErr)
	}

	return err
}

// Queue returns the underlying batch queue for inspection or manual
// reprocessing.
func (d *DeadLetterSink[T]) Queue() BatchQueue[T] {
	return d.queue
}
