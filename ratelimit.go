package sluice

import (
	"context"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality.
type RateLimiter struct {
	rate     int           // operations per interval
	interval time.Duration // time interval
	tokens   int           // current available tokens
	mu       sync.Mutex
	lastTime time.Time
}

// NewRateLimiter creates a rate limiter that allows 'rate' operations per 'interval'.
// For example, NewRateLimiter(100, time.Second) allows 100 ops/sec.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	if rate <= 0 {
		panic("sluice: rate must be positive")
	}
	if interval <= 0 {
		panic("sluice: interval must be positive")
	}
	return &RateLimiter{
		rate:     rate,
		interval: interval,
		tokens:   rate,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.TryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.interval / time.Duration(r.rate)):
			// Check again after a fraction of the interval
		}
	}
}

// TryAcquire attempts to acquire a token without blocking.
// Returns true if a token was acquired.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastTime)

	tokensToAdd := int(float64(r.rate) * (float64(elapsed) / float64(r.interval)))
	if tokensToAdd > 0 {
		r.tokens += tokensToAdd
		if r.tokens > r.rate {
			r.tokens = r.rate
		}
		r.lastTime = now
	}
}

// ThrottledSink wraps a sink with rate limiting. Each batch write
// consumes one token, so the limiter caps flushes per interval rather
// than records.
type ThrottledSink[T any] struct {
	sink    Sink[T]
	limiter *RateLimiter
}

// NewThrottledSink creates a sink that rate limits writes. The limiter
// may be shared between sinks to enforce a global budget.
func NewThrottledSink[T any](sink Sink[T], limiter *RateLimiter) *ThrottledSink[T] {
	if sink == nil {
		panic("sluice: sink cannot be nil")
	}
	if limiter == nil {
		panic("sluice: limiter cannot be nil")
	}
	return &ThrottledSink[T]{
		sink:    sink,
		limiter: limiter,
	}
}

// Write implements Sink, blocking until the limiter admits the write
// or the context is cancelled.
func (t *ThrottledSink[T]) Write(ctx context.Context, records []T) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.sink.Write(ctx, records)
}

// ThrottleMiddleware creates a middleware that rate limits writes.
func ThrottleMiddleware[T any](limiter *RateLimiter) Middleware[T] {
	if limiter == nil {
		panic("sluice: limiter cannot be nil")
	}
	return func(sink Sink[T]) Sink[T] {
		return NewThrottledSink(sink, limiter)
	}
}
