package sluice

import (
	"context"
	"sync"
	"time"
)

// HealthStatus represents the health state of a pipeline.
type HealthStatus string

const (
	// HealthStatusHealthy indicates writes are going through normally.
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded indicates writes are failing intermittently.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusUnhealthy indicates writes are consistently failing.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck tracks write outcomes and derives a coarse status from
// consecutive failures.
type HealthCheck struct {
	mu                 sync.RWMutex
	status             HealthStatus
	lastSuccessTime    time.Time
	lastErrorTime      time.Time
	lastError          error
	consecutiveErrs    int
	consecutiveOK      int
	totalWritten       int64
	totalFailed        int64
	degradedThreshold  int
	unhealthyThreshold int
}

// NewHealthCheck creates a health check with configurable thresholds.
// degradedThreshold: consecutive errors before marking as degraded.
// unhealthyThreshold: consecutive errors before marking as unhealthy.
func NewHealthCheck(degradedThreshold, unhealthyThreshold int) *HealthCheck {
	if degradedThreshold <= 0 {
		degradedThreshold = 3
	}
	if unhealthyThreshold <= 0 {
		unhealthyThreshold = 10
	}
	return &HealthCheck{
		status:             HealthStatusHealthy,
		degradedThreshold:  degradedThreshold,
		unhealthyThreshold: unhealthyThreshold,
	}
}

// RecordWrite records a successful batch write.
func (h *HealthCheck) RecordWrite(written int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSuccessTime = time.Now()
	h.consecutiveOK++
	h.consecutiveErrs = 0
	h.totalWritten += int64(written)
	h.updateStatus()
}

// RecordFailure records a failed batch write.
func (h *HealthCheck) RecordFailure(failed int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastErrorTime = time.Now()
	h.lastError = err
	h.consecutiveErrs++
	h.consecutiveOK = 0
	h.totalFailed += int64(failed)
	h.updateStatus()
}

func (h *HealthCheck) updateStatus() {
	switch {
	case h.consecutiveErrs >= h.unhealthyThreshold:
		h.status = HealthStatusUnhealthy
	case h.consecutiveErrs >= h.degradedThreshold:
		h.status = HealthStatusDegraded
	default:
		h.status = HealthStatusHealthy
	}
}

// Status returns the current health status.
func (h *HealthCheck) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// IsHealthy returns true if the status is healthy.
func (h *HealthCheck) IsHealthy() bool {
	return h.Status() == HealthStatusHealthy
}

// Details returns detailed health information.
func (h *HealthCheck) Details() HealthDetails {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthDetails{
		Status:          h.status,
		LastSuccessTime: h.lastSuccessTime,
		LastErrorTime:   h.lastErrorTime,
		LastError:       h.lastError,
		ConsecutiveErrs: h.consecutiveErrs,
		ConsecutiveOK:   h.consecutiveOK,
		TotalWritten:    h.totalWritten,
		TotalFailed:     h.totalFailed,
	}
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Status          HealthStatus
	LastSuccessTime time.Time
	LastErrorTime   time.Time
	LastError       error
	ConsecutiveErrs int
	ConsecutiveOK   int
	TotalWritten    int64
	TotalFailed     int64
}

// HealthSink wraps a sink to track write outcomes.
type HealthSink[T any] struct {
	sink   Sink[T]
	health *HealthCheck
}

// NewHealthSink creates a sink that records write outcomes in a health
// check. A nil health check gets default thresholds.
func NewHealthSink[T any](sink Sink[T], health *HealthCheck) *HealthSink[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if health == nil {
		health = NewHealthCheck(3, 10)
	}
	return &HealthSink[T]{
		sink:   sink,
		health: health,
	}
}

// Write implements Sink with health tracking.
func (h *HealthSink[T]) Write(ctx context.Context, records []T) error {
	err := h.sink.Write(ctx, records)

	if err != nil {
		h.health.RecordFailure(len(records), err)
	} else {
		h.health.RecordWrite(len(records))
	}

	return err
}

// Health returns the health check for inspection.
func (h *HealthSink[T]) Health() *HealthCheck {
	return h.health
}

// HealthMiddleware creates a middleware that tracks write outcomes.
func HealthMiddleware[T any](health *HealthCheck) Middleware[T] {
	return func(sink Sink[T]) Sink[T] {
		return NewHealthSink(sink, health)
	}
}
