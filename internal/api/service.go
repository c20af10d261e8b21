/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
)

type RateService interface {
	GetRates(ctx context.Context, userId string, req models.ShipmentRequest) (*models.RateResult, error)
	Providers() []string
}

type PurchaseService interface {
	Purchase(ctx context.Context, userId string, req models.PurchaseRequest) (*models.PurchaseResult, error)
}

type FundingService interface {
	CreateFundingOrder(ctx context.Context, userId string, amount decimal.Decimal) (*models.FundingOrder, error)
	FundAccount(ctx context.Context, userId, orderId string) (*models.FundingResult, error)
}

type BalanceService interface {
	Currency() string
	GetBalance(ctx context.Context, userId string) (*models.AccountBalance, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)
}

// Deps wires the facade to its collaborators.
type Deps struct {
	Store     store.Store
	Ledger    BalanceService
	Rates     RateService
	Purchases PurchaseService
	Funding   FundingService
}

// LedgerService is the single entry point used by the HTTP server and the
// CLIs. Every call is scoped to a trusted user id.
type LedgerService struct {
	store     store.Store
	ledger    BalanceService
	rates     RateService
	purchases PurchaseService
	funding   FundingService
}

func NewLedgerService(deps Deps) *LedgerService {
	return &LedgerService{
		store:     deps.Store,
		ledger:    deps.Ledger,
		rates:     deps.Rates,
		purchases: deps.Purchases,
		funding:   deps.Funding,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func requireUser(userId string) error {
	if userId == "" {
		return store.NewValidationError("user_id", "is required")
	}
	return nil
}
