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

// Queries use ? placeholders; the service rebinds them for postgres.
const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active = TRUE
		ORDER BY created_at`

	queryInsertUser = `
		INSERT INTO users (id, name, email, active, created_at, updated_at)
		VALUES (?, ?, ?, TRUE, ?, ?)
		ON CONFLICT DO NOTHING`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ? AND active = TRUE`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = ? AND active = TRUE`

	// Address queries
	addressColumns = `id, user_id, name, company, street1, street2, city, state, postal_code, country,
		phone, email, address_type, is_default, is_deleted, created_at, updated_at`

	queryInsertAddress = `
		INSERT INTO addresses (id, user_id, name, company, street1, street2, city, state, postal_code, country,
			phone, email, address_type, is_default, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, FALSE, ?, ?)
		RETURNING ` + addressColumns

	queryGetAddress = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	queryListAddresses = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = ? AND is_deleted = FALSE
		ORDER BY address_type, is_default DESC, created_at DESC`

	queryListAddressesByType = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = ? AND address_type = ? AND is_deleted = FALSE
		ORDER BY is_default DESC, created_at DESC`

	queryGetDefaultAddress = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = ? AND address_type = ? AND is_default = TRUE AND is_deleted = FALSE`

	queryDeleteAddress = `
		UPDATE addresses
		SET is_deleted = TRUE, is_default = FALSE, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	querySelectAddressScope = `
		SELECT id, address_type
		FROM addresses
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	queryClearAddressDefaults = `
		UPDATE addresses
		SET is_default = FALSE, updated_at = ?
		WHERE user_id = ? AND address_type = ? AND is_default = TRUE AND id <> ?`

	querySetAddressDefault = `
		UPDATE addresses
		SET is_default = TRUE, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	// Payment method queries
	paymentMethodColumns = `id, user_id, provider, provider_token, brand, last4, exp_month, exp_year,
		is_default, is_deleted, created_at, updated_at`

	queryInsertPaymentMethod = `
		INSERT INTO payment_methods (id, user_id, provider, provider_token, brand, last4, exp_month, exp_year,
			is_default, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE, FALSE, ?, ?)
		RETURNING ` + paymentMethodColumns

	queryListPaymentMethods = `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE user_id = ? AND is_deleted = FALSE
		ORDER BY is_default DESC, created_at DESC`

	queryGetDefaultPaymentMethod = `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE user_id = ? AND is_default = TRUE AND is_deleted = FALSE`

	queryGetPaymentMethod = `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	queryDeletePaymentMethod = `
		UPDATE payment_methods
		SET is_deleted = TRUE, is_default = FALSE, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	querySelectPaymentMethodScope = `
		SELECT id
		FROM payment_methods
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	queryClearPaymentMethodDefaults = `
		UPDATE payment_methods
		SET is_default = FALSE, updated_at = ?
		WHERE user_id = ? AND is_default = TRUE AND id <> ?`

	querySetPaymentMethodDefault = `
		UPDATE payment_methods
		SET is_default = TRUE, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = FALSE`

	// Balance queries
	queryGetAccountBalance = `
		SELECT id, user_id, currency, balance_minor, last_transaction_id, last_deposit_date, version, updated_at
		FROM account_balances
		WHERE user_id = ?`

	queryEnsureAccountBalance = `
		INSERT INTO account_balances (id, user_id, currency, balance_minor, version, updated_at)
		VALUES (?, ?, ?, 0, 1, ?)
		ON CONFLICT (user_id) DO NOTHING`

	queryCreditBalance = `
		UPDATE account_balances
		SET balance_minor = balance_minor + ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND currency = ?
		RETURNING balance_minor`

	queryCreditBalanceDeposit = `
		UPDATE account_balances
		SET balance_minor = balance_minor + ?, last_transaction_id = ?, version = version + 1, updated_at = ?,
			last_deposit_date = ?
		WHERE user_id = ? AND currency = ?
		RETURNING balance_minor`

	// The balance check and the write are one statement so concurrent debits
	// cannot both pass against the same balance.
	queryDebitBalance = `
		UPDATE account_balances
		SET balance_minor = balance_minor - ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND currency = ? AND balance_minor >= ?
		RETURNING balance_minor`

	queryReconcileBalance = `
		SELECT CAST(COALESCE(SUM(amount_minor), 0) AS BIGINT)
		FROM transactions
		WHERE user_id = ? AND currency = ?`

	// Transaction queries
	transactionColumns = `id, user_id, shipment_id, transaction_type, amount_minor, currency,
		balance_before_minor, balance_after_minor, status, provider, transaction_reference, description,
		created_at, processed_at`

	queryInsertTransaction = `
		INSERT INTO transactions (id, user_id, shipment_id, transaction_type, amount_minor, currency,
			balance_before_minor, balance_after_minor, status, provider, transaction_reference, description,
			created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + transactionColumns

	queryGetTransactionByReference = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_reference = ?`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryLinkTransaction = `
		UPDATE transactions
		SET shipment_id = ?, status = 'completed', processed_at = ?
		WHERE user_id = ? AND transaction_reference = ? AND status = 'pending'`

	queryMarkTransactionFailed = `
		UPDATE transactions
		SET status = 'failed', processed_at = ?
		WHERE user_id = ? AND transaction_reference = ? AND status = 'pending'`

	queryListPendingDebits = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_type = 'debit' AND status = 'pending' AND created_at < ?
		ORDER BY created_at
		LIMIT ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_minor, credit_minor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Shipment queries
	shipmentColumns = `id, user_id, from_address_id, to_address_id, quote_id, provider, provider_rate_id,
		carrier, service_level, cost_minor, currency, status, tracking_number, label_url, needs_reconciliation,
		created_at, updated_at`

	queryInsertShipment = `
		INSERT INTO shipments (id, user_id, from_address_id, to_address_id, quote_id, provider, provider_rate_id,
			carrier, service_level, cost_minor, currency, status, tracking_number, label_url, needs_reconciliation,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'created', '', '', FALSE, ?, ?)
		RETURNING ` + shipmentColumns

	queryGetShipment = `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE id = ? AND user_id = ?`

	queryListShipments = `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	querySetShipmentReconciliation = `
		UPDATE shipments
		SET needs_reconciliation = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`
)
