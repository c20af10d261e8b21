package api

import (
	"context"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"go.uber.org/zap"
)

// GetRates quotes a shipment across all configured providers.
func (s *LedgerService) GetRates(ctx context.Context, userId string, req models.ShipmentRequest) (*models.RateResult, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.rates.GetRates(ctx, userId, req)
}

// GetRatesFromAddresses quotes a shipment between two stored addresses.
func (s *LedgerService) GetRatesFromAddresses(ctx context.Context, userId, fromId, toId string, parcel models.Parcel) (*models.RateResult, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	from, err := s.store.GetAddress(ctx, userId, fromId)
	if err != nil {
		return nil, err
	}
	to, err := s.store.GetAddress(ctx, userId, toId)
	if err != nil {
		return nil, err
	}
	return s.rates.GetRates(ctx, userId, models.ShipmentRequest{From: *from, To: *to, Parcel: parcel})
}

func (s *LedgerService) RateProviders() []string {
	return s.rates.Providers()
}

// PurchaseShipment buys the label behind a previously returned quote.
func (s *LedgerService) PurchaseShipment(ctx context.Context, userId string, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	result, err := s.purchases.Purchase(ctx, userId, req)
	if err != nil {
		zap.L().Warn("Purchase failed",
			zap.String("user_id", userId),
			zap.String("quote_id", req.QuoteId),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *LedgerService) GetShipment(ctx context.Context, userId, shipmentId string) (*models.Shipment, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.store.GetShipment(ctx, userId, shipmentId)
}

func (s *LedgerService) ListShipments(ctx context.Context, userId string, limit, offset int) ([]models.Shipment, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListShipments(ctx, userId, limit, offset)
}
