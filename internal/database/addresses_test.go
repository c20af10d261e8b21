package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
)

func homeAddress(addressType string, isDefault bool) store.AddressParams {
	return store.AddressParams{
		Name:        "Test User",
		Street1:     "1 Main St",
		City:        "Austin",
		State:       "tx",
		PostalCode:  "78701",
		Country:     "us",
		AddressType: addressType,
		IsDefault:   isDefault,
	}
}

func countDefaults(t *testing.T, s *Service, userId, addressType string) int {
	t.Helper()
	addresses, err := s.ListAddresses(context.Background(), userId, addressType)
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	n := 0
	for _, a := range addresses {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestAddAddress(t *testing.T) {
	service := setupTestDb(t)

	addr, err := service.AddAddress(context.Background(), "user1", homeAddress("", false))
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	if addr.Id == "" {
		t.Error("Expected generated id")
	}
	if addr.AddressType != models.AddressTypeShipping {
		t.Errorf("Expected default type shipping, got %s", addr.AddressType)
	}
	if addr.Country != "US" || addr.State != "TX" {
		t.Errorf("Expected normalized country/state, got %s/%s", addr.Country, addr.State)
	}

	_, err = service.AddAddress(context.Background(), "user1", store.AddressParams{Name: "x", Country: "US"})
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("Expected validation error for incomplete address, got %v", err)
	}
}

func TestSetDefaultAddress_SingleDefaultPerType(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	first, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeShipping, true))
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	second, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeShipping, true))
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	billing, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeBilling, true))
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}

	def, err := service.GetDefaultAddress(ctx, "user1", models.AddressTypeShipping)
	if err != nil {
		t.Fatalf("GetDefaultAddress failed: %v", err)
	}
	if def.Id != second.Id {
		t.Errorf("Expected newest default %s, got %s", second.Id, def.Id)
	}

	updated, err := service.SetDefaultAddress(ctx, "user1", first.Id)
	if err != nil {
		t.Fatalf("SetDefaultAddress failed: %v", err)
	}
	if !updated.IsDefault {
		t.Error("Expected returned address to be default")
	}
	if n := countDefaults(t, service, "user1", models.AddressTypeShipping); n != 1 {
		t.Errorf("Expected exactly one shipping default, got %d", n)
	}

	// Other scopes keep their default.
	def, err = service.GetDefaultAddress(ctx, "user1", models.AddressTypeBilling)
	if err != nil || def.Id != billing.Id {
		t.Errorf("Expected billing default %s to survive, got %v %v", billing.Id, def, err)
	}
}

func TestSetDefaultAddress_Concurrent(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		a, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeShipping, false))
		if err != nil {
			t.Fatalf("AddAddress failed: %v", err)
		}
		ids = append(ids, a.Id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := service.SetDefaultAddress(ctx, "user1", id); err != nil {
				t.Errorf("SetDefaultAddress %s failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if n := countDefaults(t, service, "user1", models.AddressTypeShipping); n != 1 {
		t.Errorf("Expected exactly one default after concurrent updates, got %d", n)
	}
}

func TestSetDefaultAddress_NotFound(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	if _, err := service.SetDefaultAddress(ctx, "user1", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	a, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeShipping, false))
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	if _, err := service.SetDefaultAddress(ctx, "user2", a.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected another user's address to be invisible, got %v", err)
	}
}

func TestDeleteAddress(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	a, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeShipping, true))
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	if err := service.DeleteAddress(ctx, "user1", a.Id); err != nil {
		t.Fatalf("DeleteAddress failed: %v", err)
	}
	if _, err := service.GetAddress(ctx, "user1", a.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected deleted address to be hidden, got %v", err)
	}
	if _, err := service.GetDefaultAddress(ctx, "user1", models.AddressTypeShipping); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected no default after delete, got %v", err)
	}
	if err := service.DeleteAddress(ctx, "user1", a.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected second delete to report ErrNotFound, got %v", err)
	}

	// A new default can be set once the old one is gone.
	if _, err := service.AddAddress(ctx, "user1", homeAddress(models.AddressTypeShipping, true)); err != nil {
		t.Fatalf("AddAddress after delete failed: %v", err)
	}
}
