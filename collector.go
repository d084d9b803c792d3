package sluice

import "context"

// Collector defines the interface for buffering records on their way
// to a sink. Implementations decide when buffered records are flushed;
// decorators such as TimedCollector add further flush triggers on top
// of an existing Collector.
type Collector[T any] interface {
	// Accept buffers a single record. An error reports a flush that
	// the accept itself triggered, never a buffering problem; the
	// record that was being accepted is part of the failed batch.
	Accept(ctx context.Context, record T) error

	// Flush forces out whatever is buffered. Flushing an empty buffer
	// is a no-op.
	Flush(ctx context.Context) error

	// Stop discards any buffered records without flushing and releases
	// resources held by the collector. Stop is safe to call more than
	// once.
	Stop()
}

// CollectorFuncs is a struct adapter for simple Collector
// implementations. Nil fields behave as no-ops.
type CollectorFuncs[T any] struct {
	AcceptFunc func(ctx context.Context, record T) error
	FlushFunc  func(ctx context.Context) error
	StopFunc   func()
}

// Accept implements Collector.
func (f CollectorFuncs[T]) Accept(ctx context.Context, record T) error {
	if f.AcceptFunc == nil {
		return nil
	}
	return f.AcceptFunc(ctx, record)
}

// Flush implements Collector.
func (f CollectorFuncs[T]) Flush(ctx context.Context) error {
	if f.FlushFunc == nil {
		return nil
	}
	return f.FlushFunc(ctx)
}

// Stop implements Collector.
func (f CollectorFuncs[T]) Stop() {
	if f.StopFunc != nil {
		f.StopFunc()
	}
}
