package api

import (
	"context"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
)

func (s *LedgerService) AddAddress(ctx context.Context, userId string, params store.AddressParams) (*models.Address, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.AddAddress(ctx, userId, params)
}

func (s *LedgerService) GetAddress(ctx context.Context, userId, addressId string) (*models.Address, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.GetAddress(ctx, userId, addressId)
}

// ListAddresses lists all addresses of a user, or only those of addressType.
func (s *LedgerService) ListAddresses(ctx context.Context, userId, addressType string) ([]models.Address, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.ListAddresses(ctx, userId, addressType)
}

func (s *LedgerService) GetDefaultAddress(ctx context.Context, userId, addressType string) (*models.Address, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.GetDefaultAddress(ctx, userId, addressType)
}

func (s *LedgerService) SetDefaultAddress(ctx context.Context, userId, addressId string) (*models.Address, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.SetDefaultAddress(ctx, userId, addressId)
}

func (s *LedgerService) DeleteAddress(ctx context.Context, userId, addressId string) error {
	if err := requireUser(userId); err != nil {
		return err
	}
	return s.store.DeleteAddress(ctx, userId, addressId)
}

func (s *LedgerService) AddPaymentMethod(ctx context.Context, userId string, params store.PaymentMethodParams) (*models.PaymentMethod, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.AddPaymentMethod(ctx, userId, params)
}

func (s *LedgerService) ListPaymentMethods(ctx context.Context, userId string) ([]models.PaymentMethod, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.ListPaymentMethods(ctx, userId)
}

func (s *LedgerService) GetDefaultPaymentMethod(ctx context.Context, userId string) (*models.PaymentMethod, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.GetDefaultPaymentMethod(ctx, userId)
}

func (s *LedgerService) SetDefaultPaymentMethod(ctx context.Context, userId, paymentMethodId string) (*models.PaymentMethod, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.SetDefaultPaymentMethod(ctx, userId, paymentMethodId)
}

func (s *LedgerService) DeletePaymentMethod(ctx context.Context, userId, paymentMethodId string) error {
	if err := requireUser(userId); err != nil {
		return err
	}
	return s.store.DeletePaymentMethod(ctx, userId, paymentMethodId)
}
