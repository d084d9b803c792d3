package sluice

import "log/slog"

// PollingOption configures a PollingDriver.
type PollingOption func(*pollingConfig)

type pollingConfig struct {
	clock          Clock
	logger         *slog.Logger
	errorHandler   func(error)
	metricsHandler MetricsHandler
}

func defaultPollingConfig() *pollingConfig {
	return &pollingConfig{
		clock:          SystemClock(),
		logger:         slog.Default(),
		errorHandler:   func(error) {},
		metricsHandler: noopMetrics{},
	}
}

// WithClock sets the clock used to compute poll windows.
// Default: SystemClock(). If nil is passed, keeps the default.
func WithClock(clock Clock) PollingOption {
	return func(c *pollingConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
// Default: slog.Default(). If nil is passed, uses slog.Default().
func WithLogger(logger *slog.Logger) PollingOption {
	return func(c *pollingConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHandler sets a callback for handling errors. It is called
// for fetch failures and for records the collector refused.
// If nil is passed, uses a no-op handler.
func WithErrorHandler(handler func(error)) PollingOption {
	return func(c *pollingConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithMetrics sets a metrics handler for observability.
// If nil is passed, uses a no-op handler.
func WithMetrics(handler MetricsHandler) PollingOption {
	return func(c *pollingConfig) {
		if handler != nil {
			c.metricsHandler = handler
		}
	}
}

// BatchOption configures a BatchCollector.
type BatchOption func(*batchConfig)

type batchConfig struct {
	metricsHandler MetricsHandler
}

func defaultBatchConfig() *batchConfig {
	return &batchConfig{
		metricsHandler: noopMetrics{},
	}
}

// WithBatchMetrics sets a metrics handler for the collector.
// If nil is passed, uses a no-op handler.
func WithBatchMetrics(handler MetricsHandler) BatchOption {
	return func(c *batchConfig) {
		if handler != nil {
			c.metricsHandler = handler
		}
	}
}

// TimedOption configures a TimedCollector.
type TimedOption func(*timedConfig)

type timedConfig struct {
	logger       *slog.Logger
	errorHandler func(error)
}

func defaultTimedConfig() *timedConfig {
	return &timedConfig{
		logger:       slog.Default(),
		errorHandler: func(error) {},
	}
}

// WithTimedLogger sets a custom logger for the timed collector.
// If nil is passed, uses slog.Default().
func WithTimedLogger(logger *slog.Logger) TimedOption {
	return func(c *timedConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimedErrorHandler sets a callback for flush errors raised by the
// timer. Errors from manual flushes are returned to the caller instead.
// If nil is passed, uses a no-op handler.
func WithTimedErrorHandler(handler func(error)) TimedOption {
	return func(c *timedConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// StreamOption configures a StreamDriver.
type StreamOption func(*streamConfig)

type streamConfig struct {
	logger         *slog.Logger
	errorHandler   func(error)
	metricsHandler MetricsHandler
}

func defaultStreamConfig() *streamConfig {
	return &streamConfig{
		logger:         slog.Default(),
		errorHandler:   func(error) {},
		metricsHandler: noopMetrics{},
	}
}

// WithStreamLogger sets a custom logger for the stream driver.
// If nil is passed, uses slog.Default().
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(c *streamConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStreamErrorHandler sets a callback for handling errors.
// If nil is passed, uses a no-op handler.
func WithStreamErrorHandler(handler func(error)) StreamOption {
	return func(c *streamConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithStreamMetrics sets a metrics handler for the stream driver.
// If nil is passed, uses a no-op handler.
func WithStreamMetrics(handler MetricsHandler) StreamOption {
	return func(c *streamConfig) {
		if handler != nil {
			c.metricsHandler = handler
		}
	}
}
