package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"go.uber.org/zap"
)

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var sh models.Shipment
	var from, to sql.NullString
	var costMinor int64
	err := row.Scan(&sh.Id, &sh.UserId, &from, &to, &sh.QuoteId, &sh.Provider, &sh.ProviderRateId,
		&sh.Carrier, &sh.ServiceLevel, &costMinor, &sh.Currency, &sh.Status, &sh.TrackingNumber, &sh.LabelURL,
		&sh.NeedsReconciliation, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sh.FromAddressId = from.String
	sh.ToAddressId = to.String
	sh.Cost = models.FromMinor(costMinor, sh.Currency)
	return &sh, nil
}

// CreateShipment records a shipment with status created. The id is chosen by
// the caller so it can be used as the debit reference beforehand.
func (s *Service) CreateShipment(ctx context.Context, params store.CreateShipmentParams) (*models.Shipment, error) {
	if params.Id == "" || params.UserId == "" {
		return nil, store.NewValidationError("id", "shipment and user ids are required")
	}
	currency := models.NormalizeCurrency(params.Currency)
	costMinor, err := models.ToMinor(params.Cost, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidAmount, err)
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, s.rebind(queryInsertShipment),
		params.Id, params.UserId, nullString(params.FromAddressId), nullString(params.ToAddressId), params.QuoteId,
		params.Provider, params.ProviderRateId, params.Carrier, params.ServiceLevel, costMinor, currency, now, now)
	sh, err := scanShipment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: shipment %s", store.ErrAlreadyExists, params.Id)
		}
		zap.L().Error("Failed to insert shipment", zap.String("shipment_id", params.Id), zap.Error(err))
		return nil, wrapDBError("failed to insert shipment", err)
	}

	zap.L().Info("Shipment recorded",
		zap.String("shipment_id", sh.Id),
		zap.String("user_id", sh.UserId),
		zap.String("carrier", sh.Carrier),
		zap.String("cost", sh.Cost.String()))
	return sh, nil
}

func (s *Service) GetShipment(ctx context.Context, userId, shipmentId string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRowContext(ctx, s.rebind(queryGetShipment), shipmentId, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shipment %s: %w", shipmentId, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to get shipment", err)
	}
	return sh, nil
}

func (s *Service) ListShipments(ctx context.Context, userId string, limit, offset int) ([]models.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(queryListShipments), userId, limit, offset)
	if err != nil {
		return nil, wrapDBError("unable to query shipments", err)
	}
	defer closeRows(rows)

	var shipments []models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan shipment row: %w", err)
		}
		shipments = append(shipments, *sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shipment rows: %w", err)
	}
	return shipments, nil
}

// FlagForReconciliation marks a shipment whose debit could not be linked.
func (s *Service) FlagForReconciliation(ctx context.Context, userId, shipmentId string) error {
	return s.setReconciliation(ctx, userId, shipmentId, true)
}

func (s *Service) ClearReconciliationFlag(ctx context.Context, userId, shipmentId string) error {
	return s.setReconciliation(ctx, userId, shipmentId, false)
}

func (s *Service) setReconciliation(ctx context.Context, userId, shipmentId string, flag bool) error {
	result, err := s.db.ExecContext(ctx, s.rebind(querySetShipmentReconciliation), flag, time.Now().UTC(), shipmentId, userId)
	if err != nil {
		return wrapDBError("failed to update shipment reconciliation flag", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("shipment %s: %w", shipmentId, store.ErrNotFound)
	}
	return nil
}
