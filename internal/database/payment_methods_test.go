package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jfibra/alien-shippo-sub001/internal/store"
)

func cardParams(last4 string, isDefault bool) store.PaymentMethodParams {
	return store.PaymentMethodParams{
		Provider:      "PayPal",
		ProviderToken: "tok_" + last4,
		Brand:         "Visa",
		Last4:         last4,
		ExpMonth:      12,
		ExpYear:       2030,
		IsDefault:     isDefault,
	}
}

func TestPaymentMethods_DefaultLifecycle(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	first, err := service.AddPaymentMethod(ctx, "user1", cardParams("4242", true))
	if err != nil {
		t.Fatalf("AddPaymentMethod failed: %v", err)
	}
	if first.Provider != "paypal" || first.Brand != "visa" {
		t.Errorf("Expected lower-cased provider/brand, got %s/%s", first.Provider, first.Brand)
	}
	second, err := service.AddPaymentMethod(ctx, "user1", cardParams("1111", false))
	if err != nil {
		t.Fatalf("AddPaymentMethod failed: %v", err)
	}

	def, err := service.GetDefaultPaymentMethod(ctx, "user1")
	if err != nil || def.Id != first.Id {
		t.Fatalf("Expected default %s, got %v %v", first.Id, def, err)
	}

	if _, err := service.SetDefaultPaymentMethod(ctx, "user1", second.Id); err != nil {
		t.Fatalf("SetDefaultPaymentMethod failed: %v", err)
	}
	methods, err := service.ListPaymentMethods(ctx, "user1")
	if err != nil {
		t.Fatalf("ListPaymentMethods failed: %v", err)
	}
	defaults := 0
	for _, m := range methods {
		if m.IsDefault {
			defaults++
			if m.Id != second.Id {
				t.Errorf("Expected %s to be default, got %s", second.Id, m.Id)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("Expected one default, got %d", defaults)
	}

	if err := service.DeletePaymentMethod(ctx, "user1", second.Id); err != nil {
		t.Fatalf("DeletePaymentMethod failed: %v", err)
	}
	if _, err := service.GetDefaultPaymentMethod(ctx, "user1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected no default after deleting it, got %v", err)
	}
}

func TestAddPaymentMethod_RejectsCardNumber(t *testing.T) {
	service := setupTestDb(t)

	params := cardParams("4242", false)
	params.ProviderToken = "4242-4242-4242-4242"
	if _, err := service.AddPaymentMethod(context.Background(), "user1", params); !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected validation error for raw card number, got %v", err)
	}
}
