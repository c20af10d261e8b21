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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

const memoryPath = ":memory:"

type Service struct {
	db        *sql.DB
	dialect   dialect
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	driver, dsn := DriverSQLite, sqliteDSN(cfg.Path)
	if d == dialectPostgres {
		driver, dsn = DriverPostgres, cfg.Path
	}

	zap.L().Info("Opening database", zap.String("driver", driver))
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	if d == dialectSQLite && cfg.Path == memoryPath {
		// Every sqlite connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newService(db, d)
	if err := service.initSchema(ctx, cfg.CreateDummyUsers); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newService(db *sql.DB, d dialect) *Service {
	return &Service{db: db, dialect: d, subledger: NewSubledgerService(db, d)}
}

// sqliteDSN enables WAL, a busy timeout and BEGIN IMMEDIATE so writers
// serialize instead of failing mid-transaction.
func sqliteDSN(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate"
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema(ctx context.Context, createDummyUsers bool) error {
	schema := `
	-- Create users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- Postal addresses, soft deleted
	CREATE TABLE IF NOT EXISTS addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		company TEXT NOT NULL DEFAULT '',
		street1 TEXT NOT NULL,
		street2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		address_type TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_addresses_user_type ON addresses(user_id, address_type);
	-- At most one live default per (user, address_type)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_addresses_one_default
		ON addresses(user_id, address_type) WHERE is_default = TRUE AND is_deleted = FALSE;

	-- Tokenized payment methods, soft deleted
	CREATE TABLE IF NOT EXISTS payment_methods (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		provider_token TEXT NOT NULL,
		brand TEXT NOT NULL,
		last4 TEXT NOT NULL,
		exp_month INTEGER NOT NULL DEFAULT 0,
		exp_year INTEGER NOT NULL DEFAULT 0,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_methods_user ON payment_methods(user_id);
	-- At most one live default per user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_methods_one_default
		ON payment_methods(user_id) WHERE is_default = TRUE AND is_deleted = FALSE;

	-- Shipments, created only after a successful debit
	CREATE TABLE IF NOT EXISTS shipments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		from_address_id TEXT,
		to_address_id TEXT,
		quote_id TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL,
		provider_rate_id TEXT NOT NULL DEFAULT '',
		carrier TEXT NOT NULL,
		service_level TEXT NOT NULL,
		cost_minor BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		tracking_number TEXT NOT NULL DEFAULT '',
		label_url TEXT NOT NULL DEFAULT '',
		needs_reconciliation BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shipments_user_created ON shipments(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_shipments_reconciliation ON shipments(needs_reconciliation);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if err := s.subledger.InitSchema(ctx); err != nil {
		return fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	if createDummyUsers {
		s.seedDemoAccounts(ctx)
	}

	return nil
}

// demoAccounts ship from one warehouse each, so rates can be requested from
// stored addresses right after setup.
var demoAccounts = []struct {
	name, email string
	warehouse   store.AddressParams
}{
	{"Harbor Goods", "ops@harborgoods.example.com", store.AddressParams{
		Name: "Harbor Goods", Street1: "215 Clayton St", City: "San Francisco", State: "CA", PostalCode: "94117", Country: "US",
	}},
	{"Prairie Print Co", "ship@prairieprint.example.com", store.AddressParams{
		Name: "Prairie Print Co", Street1: "1200 Grand Blvd", City: "Kansas City", State: "MO", PostalCode: "64106", Country: "US",
	}},
	{"Maple Ceramics", "hello@mapleceramics.example.com", store.AddressParams{
		Name: "Maple Ceramics", Street1: "88 Queen St E", City: "Toronto", State: "ON", PostalCode: "M5C 1S1", Country: "CA",
	}},
}

func (s *Service) seedDemoAccounts(ctx context.Context) {
	for _, a := range demoAccounts {
		user, err := s.CreateUser(ctx, uuid.New().String(), a.name, a.email)
		if errors.Is(err, store.ErrAlreadyExists) {
			zap.L().Debug("Demo account already present", zap.String("email", a.email))
			continue
		}
		if err != nil {
			zap.L().Error("Failed to create demo account", zap.String("email", a.email), zap.Error(err))
			continue
		}

		warehouse := a.warehouse
		warehouse.AddressType = models.AddressTypeShipping
		warehouse.IsDefault = true
		if _, err := s.AddAddress(ctx, user.Id, warehouse); err != nil {
			zap.L().Warn("Demo account created without warehouse address", zap.String("user_id", user.Id), zap.Error(err))
			continue
		}
		zap.L().Info("Demo account created", zap.String("id", user.Id), zap.String("name", user.Name))
	}
}

func (s *Service) rebind(query string) string {
	return s.dialect.rebind(query)
}

// Ledger methods delegate to the subledger

func (s *Service) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerResult, error) {
	return s.subledger.Credit(ctx, params)
}

func (s *Service) Debit(ctx context.Context, params store.DebitParams) (*models.LedgerResult, error) {
	return s.subledger.Debit(ctx, params)
}

func (s *Service) GetBalance(ctx context.Context, userId string) (*models.AccountBalance, error) {
	return s.subledger.GetBalance(ctx, userId)
}

func (s *Service) GetTransactionByReference(ctx context.Context, userId, reference string) (*models.Transaction, error) {
	return s.subledger.GetTransactionByReference(ctx, userId, reference)
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	return s.subledger.GetTransactionHistory(ctx, userId, limit, offset)
}

func (s *Service) LinkTransaction(ctx context.Context, userId, reference, shipmentId string) error {
	return s.subledger.LinkTransaction(ctx, userId, reference, shipmentId)
}

func (s *Service) MarkTransactionFailed(ctx context.Context, userId, reference string) error {
	return s.subledger.MarkTransactionFailed(ctx, userId, reference)
}

func (s *Service) ListPendingDebits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	return s.subledger.ListPendingDebits(ctx, olderThan, limit)
}

func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	return s.subledger.ReconcileBalance(ctx, userId)
}

// helpers shared by the store files

type rowScanner interface {
	Scan(dest ...any) error
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
	}
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
