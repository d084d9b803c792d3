package sluice

import (
	"context"
	"sync"
	"time"
)

// PollingDriver drives a time-windowed source into a collector. On a
// fixed interval it computes the window [since, until) that elapsed
// since the previous poll, fetches the records inside it, and forwards
// them to the collector in order. Windows are contiguous: every instant
// belongs to exactly one window, so a source that honors the half-open
// bounds never hands the same record to two polls.
//
// Use this for log stores, outbox tables, or any source queried by
// timestamp.
type PollingDriver[T any] struct {
	source    WindowedSource[T]
	collector Collector[T]
	interval  time.Duration
	config    *pollingConfig

	mu       sync.RWMutex
	running  bool
	stopping bool
	since    time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPollingDriver creates a new windowed polling driver.
// Panics if source or collector is nil or interval is <= 0.
func NewPollingDriver[T any](
	source WindowedSource[T],
	collector Collector[T],
	interval time.Duration,
	opts ...PollingOption,
) *PollingDriver[T] {
	if source == nil {
		panic("sluice: source cannot be nil")
	}
	if collector == nil {
		panic("sluice: collector cannot be nil")
	}
	if interval <= 0 {
		panic("sluice: poll interval must be positive")
	}

	config := defaultPollingConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &PollingDriver[T]{
		source:    source,
		collector: collector,
		interval:  interval,
		config:    config,
	}
}

// Start begins the polling loop. It blocks until the context is
// cancelled or Stop is called. Returns nil on graceful shutdown.
//
// The first poll happens one full interval after Start; the window
// opens at the moment Start is called, so records arriving before the
// first tick are picked up by it, not lost.
func (d *PollingDriver[T]) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopping = false
	d.since = d.config.clock.Now()
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		close(d.doneCh)
		d.mu.Unlock()
	}()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.config.logger.Info("polling driver stopped by context")
			return ctx.Err()
		case <-d.stopCh:
			d.config.logger.Info("polling driver stopped")
			return nil
		case <-ticker.C:
			// A tick and a stop can race; a tick that lost must not poll.
			select {
			case <-ctx.Done():
				d.config.logger.Info("polling driver stopped by context")
				return ctx.Err()
			case <-d.stopCh:
				d.config.logger.Info("polling driver stopped")
				return nil
			default:
			}
			d.poll(ctx)
		}
	}
}

// Stop gracefully stops the driver and waits for it to finish.
// Stopping an idle driver is a no-op.
func (d *PollingDriver[T]) Stop() {
	d.mu.Lock()
	if !d.running || d.stopping {
		d.mu.Unlock()
		return
	}
	d.stopping = true
	stopCh := d.stopCh
	doneCh := d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Running returns whether the driver is currently running.
func (d *PollingDriver[T]) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// PollOnce executes a single poll cycle. Useful for testing or manual
// triggering. When the driver has never been started, the window covers
// the interval preceding the call. Returns ErrDriverRunning if called
// while the driver is running via Start.
func (d *PollingDriver[T]) PollOnce(ctx context.Context) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if running {
		return ErrDriverRunning
	}

	return d.poll(ctx)
}

// poll runs one window. The window is advanced before the fetch, so a
// failed fetch skips its window rather than replaying it.
func (d *PollingDriver[T]) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		d.config.metricsHandler.PollDuration(time.Since(start))
	}()

	until := d.config.clock.Now()
	d.mu.Lock()
	since := d.since
	if since.IsZero() {
		since = until.Add(-d.interval)
	}
	d.since = until
	d.mu.Unlock()

	fetchStart := time.Now()
	records, err := d.source.Fetch(ctx, since, until)
	d.config.metricsHandler.FetchDuration(time.Since(fetchStart))

	if err != nil {
		d.config.logger.Error("failed to fetch window",
			"since", since,
			"until", until,
			"error", err,
		)
		d.config.errorHandler(&FetchError{Since: since, Until: until, Err: err})
		d.config.metricsHandler.ErrorOccurred("fetch")
		return err
	}

	d.config.metricsHandler.RecordsFetched(len(records))

	if len(records) == 0 {
		d.config.logger.Debug("window empty", "since", since, "until", until)
		return nil
	}

	d.config.logger.Debug("fetched records", "count", len(records), "since", since, "until", until)

	for _, record := range records {
		if err := d.collector.Accept(ctx, record); err != nil {
			d.config.logger.Error("failed to forward record", "error", err)
			d.config.errorHandler(err)
			d.config.metricsHandler.ErrorOccurred("forward")
			return err
		}
	}

	return nil
}
