// Package sluice provides composable building blocks for streaming
// records from a source to a sink in batches. It offers generic
// collectors, flush decorators, a circuit breaker, and drivers for
// polling and push-style sources, without forcing any specific
// infrastructure dependencies.
//
// # Core Concepts
//
// Sinks define where batches go:
//   - Sink: writes a whole batch downstream (broker, database, HTTP)
//
// Sources define where records come from:
//   - WindowedSource: fetches records inside a [since, until) window
//   - StreamSource: emits records over a channel (message queues)
//
// Collectors buffer records and decide when to flush:
//   - BatchCollector: flushes when a size threshold is reached,
//     guarded by a circuit breaker
//   - TimedCollector: decorates another collector with a flush deadline
//
// Drivers move records from a source into a collector:
//   - PollingDriver: polls contiguous time windows on an interval
//   - StreamDriver: pumps a record channel, acking as it goes
//
// # Basic Usage
//
//	// Define your record type
//	type Event struct {
//	    ID      string
//	    Payload []byte
//	}
//
//	// Wire a sink into a collector that flushes every 100 records
//	// or 5 seconds, whichever comes first
//	collector := sluice.CollectTimed(sink, 100, 5*time.Second)
//
//	// Drive it from a windowed source
//	driver := sluice.NewPollingDriver(source, collector, 5*time.Second)
//	go driver.Start(ctx)
//	defer driver.Stop()
//
// Delivery is at-most-once: a batch taken for a failed flush is not
// restored. Wrap the sink with NewDeadLetterSink to retain failed
// batches, or with the middleware in this package for logging, timing,
// filtering, and panics.
package sluice
