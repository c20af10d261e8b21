package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
	"github.com/jfibra/alien-shippo-sub001/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanPaymentMethod(row rowScanner) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := row.Scan(&pm.Id, &pm.UserId, &pm.Provider, &pm.ProviderToken, &pm.Brand, &pm.Last4,
		&pm.ExpMonth, &pm.ExpYear, &pm.IsDefault, &pm.IsDeleted, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// AddPaymentMethod stores a provider token with its display summary. A
// requested default replaces the previous one in the same transaction.
func (s *Service) AddPaymentMethod(ctx context.Context, userId string, params store.PaymentMethodParams) (*models.PaymentMethod, error) {
	if userId == "" {
		return nil, store.NewValidationError("user_id", "is required")
	}
	if err := validation.PaymentMethod(params); err != nil {
		return nil, err
	}

	methodId := uuid.New().String()
	var stored *models.PaymentMethod
	err := s.withFlagTx(ctx, "add payment method", func(tx *sql.Tx, now time.Time) error {
		row := tx.QueryRowContext(ctx, s.rebind(queryInsertPaymentMethod),
			methodId, userId, strings.ToLower(strings.TrimSpace(params.Provider)), strings.TrimSpace(params.ProviderToken),
			strings.ToLower(strings.TrimSpace(params.Brand)), params.Last4, params.ExpMonth, params.ExpYear, now, now)
		pm, err := scanPaymentMethod(row)
		if err != nil {
			return wrapDBError("failed to insert payment method", err)
		}
		if params.IsDefault {
			if err := s.setExclusiveFlag(ctx, tx, paymentMethodDefaultFlag, userId, methodId, now); err != nil {
				return err
			}
			pm.IsDefault = true
		}
		stored = pm
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to store payment method", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Payment method stored",
		zap.String("user_id", userId),
		zap.String("payment_method_id", stored.Id),
		zap.String("brand", stored.Brand),
		zap.String("last4", stored.Last4))
	return stored, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context, userId string) ([]models.PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(queryListPaymentMethods), userId)
	if err != nil {
		return nil, wrapDBError("unable to query payment methods", err)
	}
	defer closeRows(rows)

	var methods []models.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan payment method row: %w", err)
		}
		methods = append(methods, *pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment method rows: %w", err)
	}
	return methods, nil
}

func (s *Service) GetDefaultPaymentMethod(ctx context.Context, userId string) (*models.PaymentMethod, error) {
	pm, err := scanPaymentMethod(s.db.QueryRowContext(ctx, s.rebind(queryGetDefaultPaymentMethod), userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("default payment method: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to get default payment method", err)
	}
	return pm, nil
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userId, paymentMethodId string) (*models.PaymentMethod, error) {
	err := s.withFlagTx(ctx, "set default payment method", func(tx *sql.Tx, now time.Time) error {
		return s.setExclusiveFlag(ctx, tx, paymentMethodDefaultFlag, userId, paymentMethodId, now)
	})
	if err != nil {
		return nil, err
	}

	pm, err := scanPaymentMethod(s.db.QueryRowContext(ctx, s.rebind(queryGetPaymentMethod), paymentMethodId, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment method %s: %w", paymentMethodId, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to get payment method", err)
	}
	return pm, nil
}

func (s *Service) DeletePaymentMethod(ctx context.Context, userId, paymentMethodId string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(queryDeletePaymentMethod), time.Now().UTC(), paymentMethodId, userId)
	if err != nil {
		return wrapDBError("failed to delete payment method", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment method %s: %w", paymentMethodId, store.ErrNotFound)
	}
	return nil
}
