package sluice

import (
	"context"
	"errors"
	"fmt"
)

// ErrValidation is returned when a record fails validation.
var ErrValidation = errors.New("sluice: validation failed")

// ValidationError contains details about a validation failure.
type ValidationError struct {
	Record  interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sluice: validation failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("sluice: validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports ErrValidation so callers can match any validation failure
// with errors.Is without knowing the concrete type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validator is a function that validates a record.
// Return nil if valid, or an error describing the validation failure.
type Validator[T any] func(T) error

// ValidatingCollector wraps a collector to validate records before they
// are buffered.
type ValidatingCollector[T any] struct {
	inner       Collector[T]
	validators  []Validator[T]
	skipInvalid bool
}

// NewValidatingCollector creates a collector that validates records.
// If skipInvalid is true, records that fail validation are silently
// dropped; otherwise Accept returns the validation error and the record
// is not buffered.
func NewValidatingCollector[T any](inner Collector[T], skipInvalid bool, validators ...Validator[T]) *ValidatingCollector[T] {
	if inner == nil {
		panic("sluice: collector cannot be nil")
	}
	if len(validators) == 0 {
		panic("sluice: at least one validator is required")
	}
	return &ValidatingCollector[T]{
		inner:       inner,
		validators:  validators,
		skipInvalid: skipInvalid,
	}
}

// Accept implements Collector with validation.
func (v *ValidatingCollector[T]) Accept(ctx context.Context, record T) error {
	if err := v.validate(record); err != nil {
		if v.skipInvalid {
			return nil
		}
		return err
	}
	return v.inner.Accept(ctx, record)
}

// Flush implements Collector.
func (v *ValidatingCollector[T]) Flush(ctx context.Context) error {
	return v.inner.Flush(ctx)
}

// Stop implements Collector.
func (v *ValidatingCollector[T]) Stop() {
	v.inner.Stop()
}

func (v *ValidatingCollector[T]) validate(record T) error {
	for _, validator := range v.validators {
		if err := validator(record); err != nil {
			return err
		}
	}
	return nil
}

// Common validators

// NotEmpty creates a validator that checks if a string field is not empty.
func NotEmpty[T any](getField func(T) string, fieldName string) Validator[T] {
	return func(record T) error {
		if getField(record) == "" {
			return &ValidationError{
				Record:  record,
				Message: fieldName + " is required",
			}
		}
		return nil
	}
}

// NotNil creates a validator that checks if a pointer field is not nil.
func NotNil[T any, P any](getField func(T) *P, fieldName string) Validator[T] {
	return func(record T) error {
		if getField(record) == nil {
			return &ValidationError{
				Record:  record,
				Message: fieldName + " is required",
			}
		}
		return nil
	}
}

// Positive creates a validator that checks if an int field is positive.
func Positive[T any](getField func(T) int, fieldName string) Validator[T] {
	return func(record T) error {
		if getField(record) <= 0 {
			return &ValidationError{
				Record:  record,
				Message: fieldName + " must be positive",
			}
		}
		return nil
	}
}

// InRange creates a validator that checks if an int field is within range.
func InRange[T any](getField func(T) int, min, max int, fieldName string) Validator[T] {
	return func(record T) error {
		v := getField(record)
		if v < min || v > max {
			return &ValidationError{
				Record:  record,
				Message: fmt.Sprintf("%s must be between %d and %d", fieldName, min, max),
			}
		}
		return nil
	}
}

// MatchesPattern creates a validator using a custom predicate.
func MatchesPattern[T any](predicate func(T) bool, message string) Validator[T] {
	return func(record T) error {
		if !predicate(record) {
			return &ValidationError{
				Record:  record,
				Message: message,
			}
		}
		return nil
	}
}
