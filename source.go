package sluice

import (
	"context"
	"time"
)

// WindowedSource defines the interface for fetching records that fall
// inside a half-open time window. Implement this for polling-based
// sources like log stores or databases with a timestamp column.
//
// Example implementations:
//   - Loki query_range reader
//   - PostgreSQL table scan by created_at
//   - Object store listing by modification time
type WindowedSource[T any] interface {
	// Fetch retrieves the records with timestamps in [since, until).
	// Returns an empty slice when the window holds no records.
	// Successive driver calls pass contiguous windows, so a record
	// belongs to exactly one window as long as Fetch honors the
	// half-open bounds.
	Fetch(ctx context.Context, since, until time.Time) ([]T, error)
}

// WindowedSourceFunc is a function adapter for simple WindowedSource
// implementations.
type WindowedSourceFunc[T any] func(ctx context.Context, since, until time.Time) ([]T, error)

// Fetch implements WindowedSource.
func (f WindowedSourceFunc[T]) Fetch(ctx context.Context, since, until time.Time) ([]T, error) {
	return f(ctx, since, until)
}

// StreamSource defines the interface for push-style record delivery.
// Implement this for event-driven sources like message brokers.
//
// Example implementations:
//   - Kafka consumer
//   - MQTT subscriber
//   - Redis Streams reader
type StreamSource[T any] interface {
	// Records returns a channel that emits records as they become
	// available. The channel is closed when the source is closed or
	// hits an unrecoverable error.
	Records() <-chan T

	// Ack acknowledges that a record was handed to the collector.
	// Note that acceptance means buffered, not yet delivered to the
	// sink; sources that need delivery-level guarantees should pair
	// the collector with a DeadLetterSink.
	Ack(ctx context.Context, record T) error

	// Nack reports that a record could not be handed to the collector.
	// The implementation decides whether to requeue, dead-letter, or
	// discard the record.
	Nack(ctx context.Context, record T, err error) error

	// Close stops the source and releases resources. After Close the
	// Records channel is closed.
	Close() error
}
