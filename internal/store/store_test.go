package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("add address: %w", NewValidationError("city", "is required"))

	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected errors.Is(err, ErrValidation) to be true")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected errors.As to find *ValidationError")
	}
	if ve.Field != "city" {
		t.Errorf("Expected field city, got %q", ve.Field)
	}
	if got := ve.Error(); got != "validation failed: city is required" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestProviderErrorUnwrapsBoth(t *testing.T) {
	err := &ProviderError{Provider: "shippo", Op: "rates", Err: context.DeadlineExceeded}

	if !errors.Is(err, ErrProviderFailure) {
		t.Errorf("Expected ErrProviderFailure in chain")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the provider cause in chain")
	}
	if got := err.Error(); got != "shippo rates: context deadline exceeded" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestConsistencyErrorUnwrapsBoth(t *testing.T) {
	cause := errors.New("database is locked")
	err := &ConsistencyError{Op: "refund", Reference: "refund:label:abc", Err: cause}

	if !errors.Is(err, ErrConsistency) {
		t.Errorf("Expected ErrConsistency in chain")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected cause in chain")
	}
}

func TestStoreInterfaceComposition(t *testing.T) {
	var s Store
	var _ LedgerStore = s
	var _ AddressStore = s
	var _ PaymentMethodStore = s
	var _ ShipmentStore = s
	var _ UserStore = s
}
