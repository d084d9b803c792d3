// Package prom exposes pipeline metrics through Prometheus.
//
// Handler implements sluice.MetricsHandler; pass it to a collector or
// driver via the metrics options:
//
//	handler := prom.NewHandler("myapp", nil)
//	collector := sluice.NewBatchCollector(sink, 100, breaker,
//		sluice.WithBatchMetrics(handler))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sluicekit/sluice"
)

// Handler bridges sluice metrics to Prometheus collectors.
type Handler struct {
	accepted       prometheus.Counter
	flushedBatches prometheus.Counter
	flushedRecords prometheus.Counter
	denied         prometheus.Counter
	dropped        prometheus.Counter
	fetched        prometheus.Counter
	flushLatency   prometheus.Histogram
	fetchLatency   prometheus.Histogram
	pollLatency    prometheus.Histogram
	errors         *prometheus.CounterVec
}

var _ sluice.MetricsHandler = (*Handler)(nil)

// NewHandler creates a handler and registers its collectors on reg.
// An empty namespace defaults to "sluice"; a nil reg uses the default
// registerer. Calling NewHandler twice against the same registerer
// panics on the duplicate registration.
func NewHandler(namespace string, reg prometheus.Registerer) *Handler {
	if namespace == "" {
		namespace = "sluice"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &Handler{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Total records accepted into collectors.",
		}),
		flushedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_flushed_total",
			Help:      "Total batches written successfully.",
		}),
		flushedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_flushed_total",
			Help:      "Total records written successfully.",
		}),
		denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_denied_total",
			Help:      "Total flushes refused by the circuit breaker.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total records lost to failed flushes.",
		}),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total records fetched from windowed sources.",
		}),
		flushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Sink write latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Complete poll cycle latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors by stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		h.accepted,
		h.flushedBatches,
		h.flushedRecords,
		h.denied,
		h.dropped,
		h.fetched,
		h.flushLatency,
		h.fetchLatency,
		h.pollLatency,
		h.errors,
	)

	return h
}

// RecordsAccepted implements sluice.MetricsHandler.
func (h *Handler) RecordsAccepted(count int) {
	h.accepted.Add(float64(count))
}

// BatchFlushed implements sluice.MetricsHandler.
func (h *Handler) BatchFlushed(count int) {
	h.flushedBatches.Inc()
	h.flushedRecords.Add(float64(count))
}

// FlushDenied implements sluice.MetricsHandler. Denied records stay
// buffered, so only the denial itself is counted.
func (h *Handler) FlushDenied(count int) {
	h.denied.Inc()
}

// FlushFailed implements sluice.MetricsHandler. Failed records are
// gone for good, so the count is tracked.
func (h *Handler) FlushFailed(count int) {
	h.dropped.Add(float64(count))
}

// FlushDuration implements sluice.MetricsHandler.
func (h *Handler) FlushDuration(d time.Duration) {
	h.flushLatency.Observe(d.Seconds())
}

// RecordsFetched implements sluice.MetricsHandler.
func (h *Handler) RecordsFetched(count int) {
	h.fetched.Add(float64(count))
}

// FetchDuration implements sluice.MetricsHandler.
func (h *Handler) FetchDuration(d time.Duration) {
	h.fetchLatency.Observe(d.Seconds())
}

// PollDuration implements sluice.MetricsHandler.
func (h *Handler) PollDuration(d time.Duration) {
	h.pollLatency.Observe(d.Seconds())
}

// ErrorOccurred implements sluice.MetricsHandler.
func (h *Handler) ErrorOccurred(errType string) {
	h.errors.WithLabelValues(errType).Inc()
}
