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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
	"github.com/jfibra/alien-shippo-sub001/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanAddress(row rowScanner) (*models.Address, error) {
	var a models.Address
	err := row.Scan(&a.Id, &a.UserId, &a.Name, &a.Company, &a.Street1, &a.Street2, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.Phone, &a.Email, &a.AddressType, &a.IsDefault, &a.IsDeleted,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AddAddress validates and stores a new address. When IsDefault is requested
// the insert and the default transition commit together.
func (s *Service) AddAddress(ctx context.Context, userId string, params store.AddressParams) (*models.Address, error) {
	if userId == "" {
		return nil, store.NewValidationError("user_id", "is required")
	}
	addr := validation.NormalizeAddress(models.Address{
		Name:        params.Name,
		Company:     params.Company,
		Street1:     params.Street1,
		Street2:     params.Street2,
		City:        params.City,
		State:       params.State,
		PostalCode:  params.PostalCode,
		Country:     params.Country,
		Phone:       params.Phone,
		Email:       params.Email,
		AddressType: params.AddressType,
	})
	if addr.AddressType == "" {
		addr.AddressType = models.AddressTypeShipping
	}
	if err := validation.StoredAddress(addr); err != nil {
		return nil, err
	}

	zap.L().Info("Storing address",
		zap.String("user_id", userId),
		zap.String("address_type", addr.AddressType),
		zap.Bool("is_default", params.IsDefault))

	addressId := uuid.New().String()
	var stored *models.Address
	err := s.withFlagTx(ctx, "add address", func(tx *sql.Tx, now time.Time) error {
		row := tx.QueryRowContext(ctx, s.rebind(queryInsertAddress),
			addressId, userId, addr.Name, addr.Company, addr.Street1, addr.Street2, addr.City, addr.State,
			addr.PostalCode, addr.Country, addr.Phone, addr.Email, addr.AddressType, now, now)
		a, err := scanAddress(row)
		if err != nil {
			return wrapDBError("failed to insert address", err)
		}
		if params.IsDefault {
			if err := s.setExclusiveFlag(ctx, tx, addressDefaultFlag, userId, addressId, now); err != nil {
				return err
			}
			a.IsDefault = true
		}
		stored = a
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to store address", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Address stored", zap.String("user_id", userId), zap.String("address_id", stored.Id))
	return stored, nil
}

func (s *Service) GetAddress(ctx context.Context, userId, addressId string) (*models.Address, error) {
	a, err := scanAddress(s.db.QueryRowContext(ctx, s.rebind(queryGetAddress), addressId, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("address %s: %w", addressId, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to get address", err)
	}
	return a, nil
}

// ListAddresses returns live addresses, all types when addressType is empty.
func (s *Service) ListAddresses(ctx context.Context, userId, addressType string) ([]models.Address, error) {
	var rows *sql.Rows
	var err error
	if addressType == "" {
		rows, err = s.db.QueryContext(ctx, s.rebind(queryListAddresses), userId)
	} else {
		if err := validation.AddressType(addressType); err != nil {
			return nil, err
		}
		rows, err = s.db.QueryContext(ctx, s.rebind(queryListAddressesByType), userId, addressType)
	}
	if err != nil {
		zap.L().Error("Failed to query addresses", zap.String("user_id", userId), zap.Error(err))
		return nil, wrapDBError("unable to query addresses", err)
	}
	defer closeRows(rows)

	var addresses []models.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan address row: %w", err)
		}
		addresses = append(addresses, *a)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during address row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating address rows: %w", err)
	}

	return addresses, nil
}

func (s *Service) GetDefaultAddress(ctx context.Context, userId, addressType string) (*models.Address, error) {
	if err := validation.AddressType(addressType); err != nil {
		return nil, err
	}
	a, err := scanAddress(s.db.QueryRowContext(ctx, s.rebind(queryGetDefaultAddress), userId, addressType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("default %s address: %w", addressType, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to get default address", err)
	}
	return a, nil
}

// SetDefaultAddress makes the address the only default within its
// (user, address_type) scope.
func (s *Service) SetDefaultAddress(ctx context.Context, userId, addressId string) (*models.Address, error) {
	err := s.withFlagTx(ctx, "set default address", func(tx *sql.Tx, now time.Time) error {
		return s.setExclusiveFlag(ctx, tx, addressDefaultFlag, userId, addressId, now)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Default address updated", zap.String("user_id", userId), zap.String("address_id", addressId))
	return s.GetAddress(ctx, userId, addressId)
}

// DeleteAddress soft deletes the address and drops its default flag.
func (s *Service) DeleteAddress(ctx context.Context, userId, addressId string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(queryDeleteAddress), time.Now().UTC(), addressId, userId)
	if err != nil {
		return wrapDBError("failed to delete address", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("address %s: %w", addressId, store.ErrNotFound)
	}

	zap.L().Info("Address deleted", zap.String("user_id", userId), zap.String("address_id", addressId))
	return nil
}
