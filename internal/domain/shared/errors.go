// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp too far in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// Storage errors
	ErrStorageFailure = errors.New("storage failure")

	// Aggregate errors
	ErrInconsistentAggregate = errors.New("inconsistent aggregate state")
	ErrRebuildInProgress     = errors.New("rebuild in progress")

	// External collaborator errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "event", "progress", "course"
	Op      string // Operation that failed, e.g., "Validate", "Append"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Event domain errors
var (
	ErrMissingUserID    = NewDomainError("event", "Validate", ErrEmptyValue, "userId is required")
	ErrMissingUnitID    = NewDomainError("event", "Validate", ErrEmptyValue, "unitId is required for COMPLETE and SUBMIT")
	ErrInvalidCourseID  = NewDomainError("event", "Validate", ErrInvalidID, "courseId must be positive")
	ErrUnknownAction    = NewDomainError("event", "Validate", ErrInvalidInput, "unknown action")
	ErrBadTimestamp     = NewDomainError("event", "Validate", ErrInvalidFormat, "timestamp must be ISO-8601")
	ErrClockSkew        = NewDomainError("event", "Validate", ErrFutureTimestamp, "timestamp exceeds allowed clock skew")
	ErrUnknownCourse    = NewDomainError("event", "Validate", ErrNotFound, "course not found in catalog")
	ErrAppendNotDurable = NewDomainError("event", "Append", ErrStorageFailure, "event could not be made durable")
)

// Progress domain errors
var (
	ErrProgressNotFound = NewDomainError("progress", "Get", ErrNotFound, "progress record not found")
)

// Course domain errors
var (
	ErrSnapshotNotFound = NewDomainError("course", "Get", ErrNotFound, "analytics snapshot not found")
	ErrCourseNotFound   = NewDomainError("course", "Lookup", ErrNotFound, "course not found")
	ErrSnapshotDrift    = NewDomainError("course", "Audit", ErrInconsistentAggregate, "snapshot disagrees with event log")
)

// External collaborator errors
var (
	ErrCatalogUnavailable = NewDomainError("catalog", "Request", ErrServiceUnavailable, "course catalog is unavailable")
	ErrCatalogTimeout     = NewDomainError("catalog", "Request", ErrTimeout, "course catalog request timeout")
	ErrCatalogBadResponse = NewDomainError("catalog", "Parse", ErrInvalidFormat, "invalid response from course catalog")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
// Unknown courses count as validation failures, not system faults.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrFutureTimestamp) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrUnknownCourse)
}

// IsStorageFailure checks if the error is a durability failure the client
// should retry with the same eventId.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsInconsistent checks if the error reports a materialized view that
// disagrees with the event log.
func IsInconsistent(err error) bool {
	return errors.Is(err, ErrInconsistentAggregate)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrStorageFailure)
}
