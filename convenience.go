package sluice

import (
	"context"
	"time"
)

// WriteFunc creates a sink from a function that writes one batch.
// This is the easiest way to create a sink.
//
// Example:
//
//	sink := sluice.WriteFunc(func(ctx context.Context, events []Event) error {
//	    return bulkInsert(events)
//	})
func WriteFunc[T any](fn func(ctx context.Context, records []T) error) Sink[T] {
	return SinkFunc[T](fn)
}

// Collect is the simplest way to build a size-based collector.
// It wires the sink to a BatchCollector guarded by a circuit breaker
// with default settings.
//
// Example:
//
//	collector := sluice.Collect(sink, 100)
//	collector.Accept(ctx, event)
func Collect[T any](sink Sink[T], size int, opts ...BatchOption) *BatchCollector[T] {
	breaker := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	return NewBatchCollector(sink, size, breaker, opts...)
}

// CollectTimed is like Collect but also flushes on a deadline, so
// records never sit in a partially filled buffer for longer than
// interval.
//
// Example:
//
//	collector := sluice.CollectTimed(sink, 100, 5*time.Second)
func CollectTimed[T any](sink Sink[T], size int, interval time.Duration, opts ...BatchOption) *TimedCollector[T] {
	return NewTimedCollector[T](Collect(sink, size, opts...), interval)
}

// CaptureFailures wraps a sink with an in-memory dead letter queue.
// Returns both the wrapped sink and the queue for inspection.
//
// Example:
//
//	sink, failures := sluice.CaptureFailures(kafkaSink)
//	// failures holds the batches that did not make it
func CaptureFailures[T any](sink Sink[T]) (*DeadLetterSink[T], *InMemoryBatchQueue[T]) {
	queue := NewInMemoryBatchQueue[T](1000)
	return NewDeadLetterSink(sink, queue), queue
}

// Poll builds a complete polling pipeline from two functions: one that
// fetches a window and one that writes a batch. Batches flush when full
// or after one poll interval, whichever comes first.
//
// Example:
//
//	driver := sluice.Poll(fetchWindow, writeBatch, 100, 5*time.Second)
//	go driver.Start(ctx)
func Poll[T any](
	fetch func(ctx context.Context, since, until time.Time) ([]T, error),
	write func(ctx context.Context, records []T) error,
	size int,
	interval time.Duration,
	opts ...PollingOption,
) *PollingDriver[T] {
	source := WindowedSourceFunc[T](fetch)
	collector := CollectTimed(SinkFunc[T](write), size, interval)
	return NewPollingDriver[T](source, collector, interval, opts...)
}

// Stream builds a complete streaming pipeline from a stream source and
// a write function, with size- and time-based flushing.
//
// Example:
//
//	driver := sluice.Stream(kafkaSource, writeBatch, 100, 5*time.Second)
//	go driver.Start(ctx)
func Stream[T any](
	source StreamSource[T],
	write func(ctx context.Context, records []T) error,
	size int,
	interval time.Duration,
	opts ...StreamOption,
) *StreamDriver[T] {
	collector := CollectTimed(SinkFunc[T](write), size, interval)
	return NewStreamDriver[T](source, collector, opts...)
}
