package sluice

import (
	"context"
	"sync"
)

// StreamDriver feeds a push-style source into a collector. Each record
// from the source is handed to the collector as it arrives; the
// batching and flush policy live entirely in the collector, so the same
// driver works for size-based, timed, or hand-rolled collectors.
//
// Use this for message queues like Kafka, MQTT, or Redis Streams.
type StreamDriver[T any] struct {
	source    StreamSource[T]
	collector Collector[T]
	config    *streamConfig

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
}

// NewStreamDriver creates a new stream-based driver.
// Panics if source or collector is nil.
func NewStreamDriver[T any](
	source StreamSource[T],
	collector Collector[T],
	opts ...StreamOption,
) *StreamDriver[T] {
	if source == nil {
		panic("sluice: source cannot be nil")
	}
	if collector == nil {
		panic("sluice: collector cannot be nil")
	}

	config := defaultStreamConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &StreamDriver[T]{
		source:    source,
		collector: collector,
		config:    config,
	}
}

// Start begins pumping records from the source. It blocks until the
// context is cancelled, Stop is called, or the source closes. On the
// way out it flushes whatever the collector still buffers; the final
// flush runs detached from the cancelled context.
func (d *StreamDriver[T]) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	result := d.pump(ctx)

	if err := d.collector.Flush(context.Background()); err != nil {
		d.config.logger.Error("final flush failed", "error", err)
		d.config.errorHandler(err)
	}

	d.config.logger.Info("stream driver stopped")

	if result == pumpSourceClosed {
		return ErrSourceClosed
	}
	return ctx.Err()
}

// Stop gracefully stops the driver.
func (d *StreamDriver[T]) Stop() {
	d.mu.RLock()
	if !d.running {
		d.mu.RUnlock()
		return
	}
	cancel := d.cancel
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// Running returns whether the driver is currently running.
func (d *StreamDriver[T]) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// pumpResult indicates how the pump terminated.
type pumpResult int

const (
	pumpContextDone pumpResult = iota
	pumpSourceClosed
)

func (d *StreamDriver[T]) pump(ctx context.Context) pumpResult {
	records := d.source.Records()

	for {
		select {
		case <-ctx.Done():
			return pumpContextDone

		case record, ok := <-records:
			if !ok {
				return pumpSourceClosed
			}
			d.accept(ctx, record)
		}
	}
}

// accept hands one record to the collector. Ack confirms the record was
// buffered, not that it reached the sink; pair the collector with a
// DeadLetterSink when delivery-level guarantees are needed.
func (d *StreamDriver[T]) accept(ctx context.Context, record T) {
	if err := d.collector.Accept(ctx, record); err != nil {
		d.config.logger.Error("failed to accept record", "error", err)
		d.config.errorHandler(err)
		d.config.metricsHandler.ErrorOccurred("accept")

		if nackErr := d.source.Nack(ctx, record, err); nackErr != nil {
			d.config.logger.Error("failed to nack record", "error", nackErr)
		}
		return
	}

	if err := d.source.Ack(ctx, record); err != nil {
		d.config.logger.Error("failed to ack record", "error", err)
		d.config.errorHandler(err)
		d.config.metricsHandler.ErrorOccurred("ack")
	}
}
