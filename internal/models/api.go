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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance represents a user's prepaid balance
type UserBalance struct {
	Currency        string          `json:"currency"`
	Balance         decimal.Decimal `json:"balance"`
	LastDepositDate *time.Time      `json:"last_deposit_date,omitempty"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id          string          `json:"id"`
	Type        string          `json:"type"` // "debit", "deposit", "refund"
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ShipmentId  string          `json:"shipment_id,omitempty"`
	Reference   string          `json:"reference"`
	Status      string          `json:"status"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PurchaseRequest selects a previously returned quote
type PurchaseRequest struct {
	QuoteId       string `json:"quote_id"`
	FromAddressId string `json:"from_address_id,omitempty"`
	ToAddressId   string `json:"to_address_id,omitempty"`
}

// PurchaseResult represents the result of a label purchase
type PurchaseResult struct {
	ShipmentId string          `json:"shipment_id"`
	Status     string          `json:"status"`
	State      string          `json:"state"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
}

// FundingOrder represents an external payment order awaiting approval
type FundingOrder struct {
	OrderId     string          `json:"order_id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ApprovalURL string          `json:"approval_url,omitempty"`
}

// FundingResult represents the result of crediting a captured payment
type FundingResult struct {
	OrderId       string          `json:"order_id"`
	TransactionId string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Replayed      bool            `json:"replayed"`
}
