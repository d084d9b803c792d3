package sluice

import "time"

// MetricsHandler defines the interface for collecting metrics.
// Implement this to integrate with your observability stack; the prom
// subpackage provides a Prometheus-backed implementation.
type MetricsHandler interface {
	// RecordsAccepted is called when records enter a collector.
	RecordsAccepted(count int)

	// BatchFlushed is called after a batch was written successfully.
	BatchFlushed(count int)

	// FlushDenied is called when the breaker refused a flush.
	// The records stay buffered.
	FlushDenied(count int)

	// FlushFailed is called when a sink write failed.
	// The records of that batch are gone.
	FlushFailed(count int)

	// FlushDuration records the time taken by a sink write.
	FlushDuration(d time.Duration)

	// RecordsFetched is called after fetching a poll window.
	RecordsFetched(count int)

	// FetchDuration records the time taken by a source fetch.
	FetchDuration(d time.Duration)

	// PollDuration records the time taken for a complete poll cycle.
	PollDuration(d time.Duration)

	// ErrorOccurred is called when an error occurs.
	ErrorOccurred(errType string)
}

// noopMetrics is the default no-op metrics handler.
type noopMetrics struct{}

func (noopMetrics) RecordsAccepted(int)         {}
func (noopMetrics) BatchFlushed(int)            {}
func (noopMetrics) FlushDenied(int)             {}
func (noopMetrics) FlushFailed(int)             {}
func (noopMetrics) FlushDuration(time.Duration) {}
func (noopMetrics) RecordsFetched(int)          {}
func (noopMetrics) FetchDuration(time.Duration) {}
func (noopMetrics) PollDuration(time.Duration)  {}
func (noopMetrics) ErrorOccurred(string)        {}

// MetricsFunc provides a simple way to implement MetricsHandler
// using callback functions. Nil callbacks are safely ignored.
type MetricsFunc struct {
	OnRecordsAccepted func(count int)
	OnBatchFlushed    func(count int)
	OnFlushDenied     func(count int)
	OnFlushFailed     func(count int)
	OnFlushDuration   func(d time.Duration)
	OnRecordsFetched  func(count int)
	OnFetchDuration   func(d time.Duration)
	OnPollDuration    func(d time.Duration)
	OnErrorOccurred   func(errType string)
}

func (m MetricsFunc) RecordsAccepted(count int) {
	if m.OnRecordsAccepted != nil {
		m.OnRecordsAccepted(count)
	}
}

func (m MetricsFunc) BatchFlushed(count int) {
	if m.OnBatchFlushed != nil {
		m.OnBatchFlushed(count)
	}
}

func (m MetricsFunc) FlushDenied(count int) {
	if m.OnFlushDenied != nil {
		m.OnFlushDenied(count)
	}
}

func (m MetricsFunc) FlushFailed(count int) {
	if m.OnFlushFailed != nil {
		m.OnFlushFailed(count)
	}
}

func (m MetricsFunc) FlushDuration(d time.Duration) {
	if m.OnFlushDuration != nil {
		m.OnFlushDuration(d)
	}
}

func (m MetricsFunc) RecordsFetched(count int) {
	if m.OnRecordsFetched != nil {
		m.OnRecordsFetched(count)
	}
}

func (m MetricsFunc) FetchDuration(d time.Duration) {
	if m.OnFetchDuration != nil {
		m.OnFetchDuration(d)
	}
}

func (m MetricsFunc) PollDuration(d time.Duration) {
	if m.OnPollDuration != nil {
		m.OnPollDuration(d)
	}
}

func (m MetricsFunc) ErrorOccurred(errType string) {
	if m.OnErrorOccurred != nil {
		m.OnErrorOccurred(errType)
	}
}
