package sluice

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDriverRunning is returned when an operation cannot be performed
	// because the driver is already running (e.g., calling PollOnce while
	// Start is active).
	ErrDriverRunning = errors.New("sluice: driver is running")

	// ErrSourceClosed is returned when the source has been closed.
	ErrSourceClosed = errors.New("sluice: source closed")
)

// FlushError wraps a sink failure raised while flushing a batch.
// The records of the failed batch are not buffered anymore; callers
// that need them must keep their own copy (see DeadLetterSink).
type FlushError struct {
	// Count is the number of records in the failed batch.
	Count int

	// Err is the underlying sink error.
	Err error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("sluice: failed to flush %d records: %v", e.Count, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// FetchError wraps a source failure raised while fetching a poll window.
// The window [Since, Until) is not retried; the driver moves on.
type FetchError struct {
	Since time.Time
	Until time.Time
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("sluice: failed to fetch window [%s, %s): %v",
		e.Since.Format(time.RFC3339Nano), e.Until.Format(time.RFC3339Nano), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
