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
)

// SubledgerService handles balance and transaction history operations
type SubledgerService struct {
	db      *sql.DB
	dialect dialect
}

func NewSubledgerService(db *sql.DB, d dialect) *SubledgerService {
	return &SubledgerService{
		db:      db,
		dialect: d,
	}
}

func (s *SubledgerService) rebind(query string) string {
	return s.dialect.rebind(query)
}

func (s *SubledgerService) InitSchema(ctx context.Context) error {
	schema := `
	-- Account Balances Table (Current State - Hot Data), one row per user
	CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		currency TEXT NOT NULL,
		balance_minor BIGINT NOT NULL DEFAULT 0 CHECK (balance_minor >= 0),
		last_transaction_id TEXT,
		last_deposit_date TIMESTAMP,
		version BIGINT NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	-- Transactions Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		shipment_id TEXT,
		transaction_type TEXT NOT NULL,
		amount_minor BIGINT NOT NULL,
		currency TEXT NOT NULL,
		balance_before_minor BIGINT NOT NULL,
		balance_after_minor BIGINT NOT NULL,
		status TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		transaction_reference TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP
	);

	-- Performance Indexes for Transactions
	CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_shipment ON transactions(shipment_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions(transaction_type, status, created_at);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_minor BIGINT NOT NULL DEFAULT 0,
		credit_minor BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
