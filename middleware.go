package sluice

import (
	"context"
	"fmt"
	"time"
)

// Middleware is a function that wraps a Sink to add behavior.
type Middleware[T any] func(Sink[T]) Sink[T]

// Chain combines multiple middlewares into one.
// Middlewares are applied in order: first middleware is outermost.
func Chain[T any](middlewares ...Middleware[T]) Middleware[T] {
	return func(sink Sink[T]) Sink[T] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			sink = middlewares[i](sink)
		}
		return sink
	}
}

// Hooks are observation points around the pipeline's two outward calls.
type Hooks[T any] struct {
	// BeforeFetch is called before fetching a window from the source.
	BeforeFetch func(ctx context.Context, since, until time.Time)

	// AfterFetch is called after fetching a window.
	AfterFetch func(ctx context.Context, records []T, err error)

	// BeforeWrite is called before a batch is written to the sink.
	BeforeWrite func(ctx context.Context, records []T)

	// AfterWrite is called after a batch write returned.
	AfterWrite func(ctx context.Context, records []T, err error)
}

// HookedSource wraps a WindowedSource with hooks.
type HookedSource[T any] struct {
	source WindowedSource[T]
	hooks  *Hooks[T]
}

// NewHookedSource creates a source with hook support.
func NewHookedSource[T any](source WindowedSource[T], hooks *Hooks[T]) *HookedSource[T] {
	if hooks == nil {
		hooks = &Hooks[T]{}
	}
	return &HookedSource[T]{
		source: source,
		hooks:  hooks,
	}
}

// Fetch implements WindowedSource with hooks.
func (h *HookedSource[T]) Fetch(ctx context.Context, since, until time.Time) ([]T, error) {
	if h.hooks.BeforeFetch != nil {
		h.hooks.BeforeFetch(ctx, since, until)
	}

	records, err := h.source.Fetch(ctx, since, until)

	if h.hooks.AfterFetch != nil {
		h.hooks.AfterFetch(ctx, records, err)
	}

	return records, err
}

// HookedSink wraps a Sink with hooks.
type HookedSink[T any] struct {
	sink  Sink[T]
	hooks *Hooks[T]
}

// NewHookedSink creates a sink with hook support.
func NewHookedSink[T any](sink Sink[T], hooks *Hooks[T]) *HookedSink[T] {
	if hooks == nil {
		hooks = &Hooks[T]{}
	}
	return &HookedSink[T]{
		sink:  sink,
		hooks: hooks,
	}
}

// Write implements Sink with hooks.
func (h *HookedSink[T]) Write(ctx context.Context, records []T) error {
	if h.hooks.BeforeWrite != nil {
		h.hooks.BeforeWrite(ctx, records)
	}

	err := h.sink.Write(ctx, records)

	if h.hooks.AfterWrite != nil {
		h.hooks.AfterWrite(ctx, records, err)
	}

	return err
}

// LoggingMiddleware creates a middleware that logs write operations.
// Panics if logFn is nil.
func LoggingMiddleware[T any](logFn func(format string, args ...any)) Middleware[T] {
	if logFn == nil {
		panic("sluice: logFn cannot be nil")
	}
	return func(sink Sink[T]) Sink[T] {
		return SinkFunc[T](func(ctx context.Context, records []T) error {
			start := time.Now()
			logFn("writing %d records", len(records))

			err := sink.Write(ctx, records)

			logFn("wrote records: count=%d err=%v duration=%v",
				len(records), err, time.Since(start))

			return err
		})
	}
}

// TimingMiddleware creates a middleware that records write timings.
// Panics if onDuration is nil.
func TimingMiddleware[T any](onDuration func(d time.Duration)) Middleware[T] {
	if onDuration == nil {
		panic("sluice: onDuration cannot be nil")
	}
	return func(sink Sink[T]) Sink[T] {
		return SinkFunc[T](func(ctx context.Context, records []T) error {
			start := time.Now()
			err := sink.Write(ctx, records)
			onDuration(time.Since(start))
			return err
		})
	}
}

// RecoveryMiddleware creates a middleware that turns sink panics into
// write errors, so one bad batch cannot take down the driver.
func RecoveryMiddleware[T any](onPanic func(recovered any)) Middleware[T] {
	return func(sink Sink[T]) Sink[T] {
		return SinkFunc[T](func(ctx context.Context, records []T) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if onPanic != nil {
						onPanic(r)
					}
					err = fmt.Errorf("sluice: sink panicked: %v", r)
				}
			}()
			return sink.Write(ctx, records)
		})
	}
}

// FilterMiddleware creates a middleware that drops records the
// predicate rejects before they reach the sink. A batch left empty by
// the filter counts as written. Panics if predicate is nil.
func FilterMiddleware[T any](predicate func(T) bool) Middleware[T] {
	if predicate == nil {
		panic("sluice: predicate cannot be nil")
	}
	return func(sink Sink[T]) Sink[T] {
		return SinkFunc[T](func(ctx context.Context, records []T) error {
			var filtered []T
			for _, r := range records {
				if predicate(r) {
					filtered = append(filtered, r)
				}
			}

			if len(filtered) == 0 {
				return nil
			}
			return sink.Write(ctx, filtered)
		})
	}
}

// TransformMiddleware creates a middleware that transforms records
// before they are written. Panics if transform is nil.
func TransformMiddleware[T any](transform func(T) T) Middleware[T] {
	if transform == nil {
		panic("sluice: transform cannot be nil")
	}
	return func(sink Sink[T]) Sink[T] {
		return SinkFunc[T](func(ctx context.Context, records []T) error {
			transformed := make([]T, len(records))
			for i, r := range records {
				transformed[i] = transform(r)
			}
			return sink.Write(ctx, transformed)
		})
	}
}
