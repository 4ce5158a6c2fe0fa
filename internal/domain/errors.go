package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced item, comment, rating or user is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor may not mutate the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates optimistic-concurrency retries were exhausted.
	ErrConflict = errors.New("conflict")
	// ErrUpstreamUnavailable indicates a store transport failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError names the offending field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid is shorthand for constructing a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
