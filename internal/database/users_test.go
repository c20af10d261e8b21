package database

import (
	"context"
	"testing"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
)

func TestSeedDemoAccounts(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	service.seedDemoAccounts(ctx)
	// a second run must not duplicate accounts or addresses
	service.seedDemoAccounts(ctx)

	users, err := service.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != len(demoAccounts)+1 {
		t.Fatalf("Expected %d users, got %d", len(demoAccounts)+1, len(users))
	}

	for _, a := range demoAccounts {
		user, err := service.GetUserByEmail(ctx, a.email)
		if err != nil {
			t.Fatalf("Demo account %s missing: %v", a.email, err)
		}
		addr, err := service.GetDefaultAddress(ctx, user.Id, models.AddressTypeShipping)
		if err != nil {
			t.Errorf("Expected default warehouse for %s, got %v", a.email, err)
			continue
		}
		if addr.City != a.warehouse.City {
			t.Errorf("Expected warehouse in %s, got %s", a.warehouse.City, addr.City)
		}
	}
}
