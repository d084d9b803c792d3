package sluice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type appendSink struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (s *appendSink) Write(ctx context.Context, records []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	batch := make([]string, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *appendSink) last() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func TestChain_AppliesInOrder(t *testing.T) {
	var order []string

	tag := func(name string) Middleware[string] {
		return func(sink Sink[string]) Sink[string] {
			return SinkFunc[string](func(ctx context.Context, records []string) error {
				order = append(order, name)
				return sink.Write(ctx, records)
			})
		}
	}

	sink := &appendSink{}
	chained := Chain[string](tag("outer"), tag("inner"))(sink)

	chained.Write(context.Background(), []string{"a"})

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("call order = %v, want [outer inner]", order)
	}
}

func TestHookedSink_CallsHooks(t *testing.T) {
	var before, after int
	var afterErr error

	sink := &appendSink{}
	hooked := NewHookedSink[string](sink, &Hooks[string]{
		BeforeWrite: func(ctx context.Context, records []string) { before++ },
		AfterWrite:  func(ctx context.Context, records []string, err error) { after++; afterErr = err },
	})

	hooked.Write(context.Background(), []string{"a"})

	if before != 1 || after != 1 {
		t.Errorf("hooks called %d/%d times, want 1/1", before, after)
	}
	if afterErr != nil {
		t.Errorf("after hook saw error %v, want nil", afterErr)
	}
}

func TestHookedSink_NilHooks(t *testing.T) {
	sink := &appendSink{}
	hooked := NewHookedSink[string](sink, nil)

	if err := hooked.Write(context.Background(), []string{"a"}); err != nil {
		t.Errorf("write failed: %v", err)
	}
}

func TestHookedSource_CallsHooks(t *testing.T) {
	var fetches int
	var seen []string

	source := WindowedSourceFunc[string](func(ctx context.Context, since, until time.Time) ([]string, error) {
		return []string{"a", "b"}, nil
	})

	hooked := NewHookedSource[string](source, &Hooks[string]{
		BeforeFetch: func(ctx context.Context, since, until time.Time) { fetches++ },
		AfterFetch:  func(ctx context.Context, records []string, err error) { seen = records },
	})

	records, err := hooked.Fetch(context.Background(), time.Now().Add(-time.Minute), time.Now())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("fetched %d records, want 2", len(records))
	}
	if fetches != 1 || len(seen) != 2 {
		t.Errorf("hooks saw %d fetches and %d records, want 1 and 2", fetches, len(seen))
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	logFn := func(format string, args ...any) {
		lines = append(lines, format)
	}

	sink := &appendSink{}
	logged := LoggingMiddleware[string](logFn)(sink)

	logged.Write(context.Background(), []string{"a", "b"})

	if len(lines) != 2 {
		t.Fatalf("logged %d lines, want 2 (before and after)", len(lines))
	}
	if !strings.Contains(lines[0], "writing") {
		t.Errorf("first line = %q, want the pre-write message", lines[0])
	}
}

func TestTimingMiddleware(t *testing.T) {
	var captured time.Duration
	sink := SinkFunc[string](func(ctx context.Context, records []string) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	timed := TimingMiddleware[string](func(d time.Duration) { captured = d })(sink)
	timed.Write(context.Background(), []string{"a"})

	if captured < 5*time.Millisecond {
		t.Errorf("captured duration = %v, want at least the sink's latency", captured)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var recovered any
	sink := SinkFunc[string](func(ctx context.Context, records []string) error {
		panic("sink exploded")
	})

	safe := RecoveryMiddleware[string](func(r any) { recovered = r })(sink)

	err := safe.Write(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected an error from the recovered panic")
	}
	if recovered != "sink exploded" {
		t.Errorf("recovered = %v, want the panic value", recovered)
	}
}

func TestRecoveryMiddleware_NoPanicPassesThrough(t *testing.T) {
	sinkErr := errors.New("plain failure")
	sink := SinkFunc[string](func(ctx context.Context, records []string) error {
		return sinkErr
	})

	safe := RecoveryMiddleware[string](nil)(sink)

	if err := safe.Write(context.Background(), []string{"a"}); !errors.Is(err, sinkErr) {
		t.Errorf("err = %v, want the sink error untouched", err)
	}
}

func TestFilterMiddleware(t *testing.T) {
	sink := &appendSink{}
	filtered := FilterMiddleware[string](func(r string) bool {
		return r != "drop"
	})(sink)

	filtered.Write(context.Background(), []string{"keep", "drop", "keep2"})

	last := sink.last()
	if len(last) != 2 || last[0] != "keep" || last[1] != "keep2" {
		t.Errorf("written batch = %v, want [keep keep2]", last)
	}
}

func TestFilterMiddleware_EmptyResultSkipsWrite(t *testing.T) {
	sink := &appendSink{}
	filtered := FilterMiddleware[string](func(r string) bool { return false })(sink)

	if err := filtered.Write(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(sink.batches) != 0 {
		t.Errorf("sink got %d writes, want 0 for a fully filtered batch", len(sink.batches))
	}
}

func TestTransformMiddleware(t *testing.T) {
	sink := &appendSink{}
	upper := TransformMiddleware[string](strings.ToUpper)(sink)

	upper.Write(context.Background(), []string{"a", "b"})

	last := sink.last()
	if len(last) != 2 || last[0] != "A" || last[1] != "B" {
		t.Errorf("written batch = %v, want [A B]", last)
	}
}

func TestMiddleware_Validation(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"nil logFn", func() { LoggingMiddleware[string](nil) }},
		{"nil onDuration", func() { TimingMiddleware[string](nil) }},
		{"nil predicate", func() { FilterMiddleware[string](nil) }},
		{"nil transform", func() { TransformMiddleware[string](nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}
