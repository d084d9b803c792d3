package sluice

import (
	"context"
	"errors"
	"sync"
)

// Sink defines the interface for writing record batches downstream.
// Implement this to define where flushed batches go.
//
// Example implementations:
//   - Kafka producer (publish events)
//   - PostgreSQL writer (multi-row inserts)
//   - Redis stream appender
//   - HTTP client (send webhooks)
type Sink[T any] interface {
	// Write delivers a batch of records. A nil return means the whole
	// batch was accepted downstream; an error means the whole batch
	// failed. Partial delivery is a sink-internal concern and must be
	// reported as failure.
	Write(ctx context.Context, records []T) error
}

// SinkFunc is a function adapter for simple Sink implementations.
type SinkFunc[T any] func(ctx context.Context, records []T) error

// Write implements Sink.
func (f SinkFunc[T]) Write(ctx context.Context, records []T) error {
	return f(ctx, records)
}

// MultiSink writes every batch to several sinks concurrently.
// A batch counts as written only when all sinks accepted it;
// individual failures are collected and joined.
type MultiSink[T any] struct {
	sinks []Sink[T]
}

// NewMultiSink creates a sink that fans out to all given sinks.
func NewMultiSink[T any](sinks ...Sink[T]) *MultiSink[T] {
	if len(sinks) == 0 {
		panic("sluice: at least one sink is required")
	}
	for _, s := range sinks {
		if s == nil {
			panic("sluice: sink cannot be nil")
		}
	}
	return &MultiSink[T]{sinks: sinks}
}

// Write implements Sink by writing to all sinks concurrently.
func (m *MultiSink[T]) Write(ctx context.Context, records []T) error {
	errs := make([]error, len(m.sinks))

	var wg sync.WaitGroup
	for i, s := range m.sinks {
		wg.Add(1)
		go func(i int, s Sink[T]) {
			defer wg.Done()
			errs[i] = s.Write(ctx, records)
		}(i, s)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// ChunkedSink splits large batches into smaller writes for sinks with
// a payload cap (HTTP bodies, insert statements).
type ChunkedSink[T any] struct {
	sink     Sink[T]
	maxBatch int
}

// NewChunkedSink creates a sink that writes in chunks of maxBatch
// records. Panics if sink is nil or maxBatch <= 0.
func NewChunkedSink[T any](sink Sink[T], maxBatch int) *ChunkedSink[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if maxBatch <= 0 {
		panic("sluice: maxBatch must be positive")
	}
	return &ChunkedSink[T]{
		sink:     sink,
		maxBatch: maxBatch,
	}
}

// Write implements Sink by splitting into smaller writes. The first
// failing chunk aborts the remainder.
func (c *ChunkedSink[T]) Write(ctx context.Context, records []T) error {
	if len(records) <= c.maxBatch {
		return c.sink.Write(ctx, records)
	}

	for i := 0; i < len(records); i += c.maxBatch {
		end := i + c.maxBatch
		if end > len(records) {
			end = len(records)
		}
		if err := c.sink.Write(ctx, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// RoutingSink routes each record of a batch to a sink chosen by a
// selector function. Records with no matching route go to the fallback
// sink, or are silently skipped when no fallback is set.
type RoutingSink[T any] struct {
	selector func(T) string
	routes   map[string]Sink[T]
	fallback Sink[T]
}

// NewRoutingSink creates a sink that routes records by selector key.
// Panics if selector is nil or neither routes nor fallback are given.
func NewRoutingSink[T any](selector func(T) string, routes map[string]Sink[T], fallback Sink[T]) *RoutingSink[T] {
	if selector == nil {
		panic("sluice: selector cannot be nil")
	}
	if len(routes) == 0 && fallback == nil {
		panic("sluice: at least one route or fallback is required")
	}
	return &RoutingSink[T]{
		selector: selector,
		routes:   routes,
		fallback: fallback,
	}
}

// Write implements Sink by grouping records per route and writing each
// group to its sink. Route errors are collected and joined so one bad
// route does not hide the others.
func (r *RoutingSink[T]) Write(ctx context.Context, records []T) error {
	groups := make(map[string][]T)
	var unrouted []T

	for _, record := range records {
		route := r.selector(record)
		if _, ok := r.routes[route]; ok {
			groups[route] = append(groups[route], record)
		} else if r.fallback != nil {
			unrouted = append(unrouted, record)
		}
	}

	var errs []error
	for route, group := range groups {
		if err := r.routes[route].Write(ctx, group); err != nil {
			errs = append(errs, err)
		}
	}
	if len(unrouted) > 0 {
		if err := r.fallback.Write(ctx, unrouted); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
