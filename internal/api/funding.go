package api

import (
	"context"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
)

func (s *LedgerService) CreateFundingOrder(ctx context.Context, userId string, amount decimal.Decimal) (*models.FundingOrder, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.funding.CreateFundingOrder(ctx, userId, amount)
}

// FundAccount credits a captured PayPal order. Repeated calls for the same
// order return the original credit.
func (s *LedgerService) FundAccount(ctx context.Context, userId, orderId string) (*models.FundingResult, error) {
	if err := requireUser(userId); err != nil {
		return nil, err
	}
	return s.funding.FundAccount(ctx, userId, orderId)
}
