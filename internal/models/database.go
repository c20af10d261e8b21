package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address types
const (
	AddressTypeShipping = "shipping"
	AddressTypeBilling  = "billing"
	AddressTypeReturn   = "return"
	AddressTypeBoth     = "both"
)

// Transaction types
const (
	TransactionTypeDebit   = "debit"
	TransactionTypeDeposit = "deposit"
	TransactionTypeRefund  = "refund"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Shipment statuses
const (
	ShipmentStatusCreated        = "created"
	ShipmentStatusLabelPurchased = "label_purchased"
	ShipmentStatusInTransit      = "in_transit"
	ShipmentStatusDelivered      = "delivered"
	ShipmentStatusFailed         = "failed"
	ShipmentStatusCancelled      = "cancelled"
)

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Address represents a user's postal address
type Address struct {
	Id          string    `db:"id" json:"id"`
	UserId      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Company     string    `db:"company" json:"company,omitempty"`
	Street1     string    `db:"street1" json:"street1"`
	Street2     string    `db:"street2" json:"street2,omitempty"`
	City        string    `db:"city" json:"city"`
	State       string    `db:"state" json:"state,omitempty"`
	PostalCode  string    `db:"postal_code" json:"postal_code,omitempty"`
	Country     string    `db:"country" json:"country"`
	Phone       string    `db:"phone" json:"phone,omitempty"`
	Email       string    `db:"email" json:"email,omitempty"`
	AddressType string    `db:"address_type" json:"address_type"`
	IsDefault   bool      `db:"is_default" json:"is_default"`
	IsDeleted   bool      `db:"is_deleted" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PaymentMethod represents a provider-tokenized payment instrument
type PaymentMethod struct {
	Id            string    `db:"id" json:"id"`
	UserId        string    `db:"user_id" json:"user_id"`
	Provider      string    `db:"provider" json:"provider"`
	ProviderToken string    `db:"provider_token" json:"-"`
	Brand         string    `db:"brand" json:"brand"`
	Last4         string    `db:"last4" json:"last4"`
	ExpMonth      int       `db:"exp_month" json:"exp_month,omitempty"`
	ExpYear       int       `db:"exp_year" json:"exp_year,omitempty"`
	IsDefault     bool      `db:"is_default" json:"is_default"`
	IsDeleted     bool      `db:"is_deleted" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Currency          string          `db:"currency"`
	Balance           decimal.Decimal `db:"balance_minor"`
	LastTransactionId string          `db:"last_transaction_id"`
	LastDepositDate   *time.Time      `db:"last_deposit_date"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Transaction represents immutable transaction history (cold data)
type Transaction struct {
	Id              string          `db:"id"`
	UserId          string          `db:"user_id"`
	ShipmentId      string          `db:"shipment_id"`
	TransactionType string          `db:"transaction_type"`
	Amount          decimal.Decimal `db:"amount_minor"`
	Currency        string          `db:"currency"`
	BalanceBefore   decimal.Decimal `db:"balance_before_minor"`
	BalanceAfter    decimal.Decimal `db:"balance_after_minor"`
	Status          string          `db:"status"`
	Provider        string          `db:"provider"`
	Reference       string          `db:"transaction_reference"`
	Description     string          `db:"description"`
	CreatedAt       time.Time       `db:"created_at"`
	ProcessedAt     *time.Time      `db:"processed_at"`
}

// LedgerResult is returned by the ledger primitives. Replayed is set when the
// reference had already been applied and nothing changed.
type LedgerResult struct {
	Transaction Transaction
	Balance     decimal.Decimal
	Replayed    bool
}

// Shipment represents a purchased label
type Shipment struct {
	Id                  string          `db:"id" json:"id"`
	UserId              string          `db:"user_id" json:"user_id"`
	FromAddressId       string          `db:"from_address_id" json:"from_address_id,omitempty"`
	ToAddressId         string          `db:"to_address_id" json:"to_address_id,omitempty"`
	QuoteId             string          `db:"quote_id" json:"quote_id"`
	Provider            string          `db:"provider" json:"provider"`
	ProviderRateId      string          `db:"provider_rate_id" json:"provider_rate_id"`
	Carrier             string          `db:"carrier" json:"carrier"`
	ServiceLevel        string          `db:"service_level" json:"service_level"`
	Cost                decimal.Decimal `db:"cost_minor" json:"cost"`
	Currency            string          `db:"currency" json:"currency"`
	Status              string          `db:"status" json:"status"`
	TrackingNumber      string          `db:"tracking_number" json:"tracking_number,omitempty"`
	LabelURL            string          `db:"label_url" json:"label_url,omitempty"`
	NeedsReconciliation bool            `db:"needs_reconciliation" json:"needs_reconciliation"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}
