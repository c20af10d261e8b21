package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"go.uber.org/zap"
)

func (s *SubledgerService) accountBalance(ctx context.Context, q queryer, userId string) (*models.AccountBalance, error) {
	var balance models.AccountBalance
	var balanceMinor int64
	var lastTransactionId sql.NullString
	var lastDeposit sql.NullTime

	err := q.QueryRowContext(ctx, s.rebind(queryGetAccountBalance), userId).Scan(
		&balance.Id, &balance.UserId, &balance.Currency, &balanceMinor,
		&lastTransactionId, &lastDeposit, &balance.Version, &balance.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("balance for user %s: %w", userId, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to get balance", err)
	}

	balance.Balance = models.FromMinor(balanceMinor, balance.Currency)
	balance.LastTransactionId = lastTransactionId.String
	balance.LastDepositDate = nullTimePtr(lastDeposit)
	return &balance, nil
}

// GetBalance returns the user's balance row, or store.ErrNotFound when the
// user has never been credited.
func (s *SubledgerService) GetBalance(ctx context.Context, userId string) (*models.AccountBalance, error) {
	balance, err := s.accountBalance(ctx, s.db, userId)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Retrieved balance",
		zap.String("user_id", userId),
		zap.String("currency", balance.Currency),
		zap.String("balance", balance.Balance.String()))
	return balance, nil
}

// ReconcileBalance verifies that the current balance matches the sum of all
// transactions. Failed debits stay in the sum because their refund is a
// separate transaction.
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId))

	current, err := s.GetBalance(ctx, userId)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	var calculatedMinor int64
	err = s.db.QueryRowContext(ctx, s.rebind(queryReconcileBalance), userId, current.Currency).Scan(&calculatedMinor)
	if err != nil {
		return wrapDBError("failed to calculate balance from transactions", err)
	}
	calculated := models.FromMinor(calculatedMinor, current.Currency)

	if !current.Balance.Equal(calculated) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("current_balance", current.Balance.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", current.Balance.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", current.Balance.String(), calculated.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("balance", current.Balance.String()))
	return nil
}
