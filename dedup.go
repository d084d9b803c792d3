package sluice

import (
	"context"
	"sync"
	"time"
)

// Deduplicator tracks record keys so the same record is only collected
// once within the TTL.
type Deduplicator[K comparable] struct {
	mu      sync.RWMutex
	seen    map[K]time.Time
	ttl     time.Duration
	maxSize int
	stopCh  chan struct{}
	once    sync.Once
}

// NewDeduplicator creates a deduplicator with the given TTL for entries.
// Set ttl to 0 for no expiration. Set maxSize to 0 for unlimited size.
// Call Close when done; a ttl > 0 starts a background sweeper.
func NewDeduplicator[K comparable](ttl time.Duration, maxSize int) *Deduplicator[K] {
	d := &Deduplicator[K]{
		seen:    make(map[K]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		stopCh:  make(chan struct{}),
	}
	if ttl > 0 {
		go d.cleanupLoop()
	}
	return d
}

// IsDuplicate checks if the key has been seen before.
// Returns true if the key is a duplicate.
func (d *Deduplicator[K]) IsDuplicate(key K) bool {
	d.mu.RLock()
	_, exists := d.seen[key]
	d.mu.RUnlock()
	return exists
}

// MarkSeen marks a key as seen.
func (d *Deduplicator[K]) MarkSeen(key K) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Evict oldest if at max size
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	d.seen[key] = time.Now()
}

// Remove removes a key from the seen set.
func (d *Deduplicator[K]) Remove(key K) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// Clear removes all entries.
func (d *Deduplicator[K]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[K]time.Time)
}

// Size returns the number of tracked keys.
func (d *Deduplicator[K]) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

// Close stops the background sweeper. Safe to call more than once.
func (d *Deduplicator[K]) Close() {
	d.once.Do(func() {
		close(d.stopCh)
	})
}

func (d *Deduplicator[K]) evictOldest() {
	var oldestKey K
	var oldestTime time.Time
	first := true

	for k, t := range d.seen {
		if first || t.Before(oldestTime) {
			oldestKey = k
			oldestTime = t
			first = false
		}
	}

	if !first {
		delete(d.seen, oldestKey)
	}
}

func (d *Deduplicator[K]) cleanupLoop() {
	ticker := time.NewTicker(d.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

func (d *Deduplicator[K]) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for k, t := range d.seen {
		if now.Sub(t) > d.ttl {
			delete(d.seen, k)
		}
	}
}

// DedupCollector wraps a collector to silently drop records whose key
// was already seen. The key is marked at accept time, before delivery,
// so a record in a batch that later fails its flush still counts as
// seen.
type DedupCollector[T any, K comparable] struct {
	inner  Collector[T]
	dedup  *Deduplicator[K]
	getKey func(T) K
}

// NewDedupCollector creates a collector that skips duplicates.
// The getKey function extracts a unique key from each record. The
// deduplicator may be shared between collectors; Stop does not close
// it. Panics if any argument is nil.
func NewDedupCollector[T any, K comparable](
	inner Collector[T],
	dedup *Deduplicator[K],
	getKey func(T) K,
) *DedupCollector[T, K] {
	if inner == nil {
		panic("sluice: collector cannot be nil")
	}
	if dedup == nil {
		panic("sluice: dedup cannot be nil")
	}
	if getKey == nil {
		panic("sluice: getKey cannot be nil")
	}
	return &DedupCollector[T, K]{
		inner:  inner,
		dedup:  dedup,
		getKey: getKey,
	}
}

// Accept implements Collector. Duplicates are dropped without error.
func (d *DedupCollector[T, K]) Accept(ctx context.Context, record T) error {
	key := d.getKey(record)
	if d.dedup.IsDuplicate(key) {
		return nil
	}
	d.dedup.MarkSeen(key)
	return d.inner.Accept(ctx, record)
}

// Flush implements Collector.
func (d *DedupCollector[T, K]) Flush(ctx context.Context) error {
	return d.inner.Flush(ctx)
}

// Stop implements Collector.
func (d *DedupCollector[T, K]) Stop() {
	d.inner.Stop()
}

// Deduplicator returns the underlying deduplicator for inspection.
func (d *DedupCollector[T, K]) Deduplicator() *Deduplicator[K] {
	return d.dedup
}
