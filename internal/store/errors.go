package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrTransientStore         = errors.New("transient store error")
	ErrProviderFailure        = errors.New("provider failure")
	ErrConsistency            = errors.New("consistency failure")
	ErrQuoteExpired           = errors.New("quote expired")
	ErrNoRates                = errors.New("no rates available")
)

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for one field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ProviderError wraps the failure of a single external rate or payment provider.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProviderFailure, e.Err} }

// ConsistencyError reports that a compensating action could not be applied.
// The operator has been alerted when this is returned.
type ConsistencyError struct {
	Op        string
	Reference string
	Err       error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Reference, e.Err)
}

func (e *ConsistencyError) Unwrap() []error { return []error{ErrConsistency, e.Err} }
