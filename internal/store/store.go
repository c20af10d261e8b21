package store

import (
	"context"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// AddressParams contains the caller-supplied fields of a postal address.
type AddressParams struct {
	Name        string
	Company     string
	Street1     string
	Street2     string
	City        string
	State       string
	PostalCode  string
	Country     string
	Phone       string
	Email       string
	AddressType string
	IsDefault   bool
}

// PaymentMethodParams contains the result of provider-side tokenization.
// Raw card data never reaches this layer.
type PaymentMethodParams struct {
	Provider      string
	ProviderToken string
	Brand         string
	Last4         string
	ExpMonth      int
	ExpYear       int
	IsDefault     bool
}

// CreditParams describes a balance increase.
type CreditParams struct {
	UserId          string
	Amount          decimal.Decimal
	Currency        string
	Reference       string
	TransactionType string // deposit or refund
	Provider        string
	Description     string
	ShipmentId      string
}

// DebitParams describes a balance decrease.
type DebitParams struct {
	UserId      string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Provider    string
	Description string
}

// CreateShipmentParams describes a shipment recorded after a successful debit.
type CreateShipmentParams struct {
	Id             string
	UserId         string
	FromAddressId  string
	ToAddressId    string
	QuoteId        string
	Provider       string
	ProviderRateId string
	Carrier        string
	ServiceLevel   string
	Cost           decimal.Decimal
	Currency       string
}

// UserStore owns user records.
type UserStore interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)
}

// AddressStore owns postal addresses and their per-type default flag.
type AddressStore interface {
	AddAddress(ctx context.Context, userId string, params AddressParams) (*models.Address, error)
	GetAddress(ctx context.Context, userId, addressId string) (*models.Address, error)
	ListAddresses(ctx context.Context, userId, addressType string) ([]models.Address, error)
	GetDefaultAddress(ctx context.Context, userId, addressType string) (*models.Address, error)
	SetDefaultAddress(ctx context.Context, userId, addressId string) (*models.Address, error)
	DeleteAddress(ctx context.Context, userId, addressId string) error
}

// PaymentMethodStore owns tokenized payment methods and the per-user default flag.
type PaymentMethodStore interface {
	AddPaymentMethod(ctx context.Context, userId string, params PaymentMethodParams) (*models.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, userId string) ([]models.PaymentMethod, error)
	GetDefaultPaymentMethod(ctx context.Context, userId string) (*models.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, userId, paymentMethodId string) (*models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, userId, paymentMethodId string) error
}

// LedgerStore owns balances and the append-only transaction history.
// Credit and Debit are the only operations that change a balance.
type LedgerStore interface {
	Credit(ctx context.Context, params CreditParams) (*models.LedgerResult, error)
	Debit(ctx context.Context, params DebitParams) (*models.LedgerResult, error)
	GetBalance(ctx context.Context, userId string) (*models.AccountBalance, error)
	GetTransactionByReference(ctx context.Context, userId, reference string) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)
	LinkTransaction(ctx context.Context, userId, reference, shipmentId string) error
	MarkTransactionFailed(ctx context.Context, userId, reference string) error
	ListPendingDebits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
	ReconcileBalance(ctx context.Context, userId string) error
}

// ShipmentStore owns shipment records.
type ShipmentStore interface {
	CreateShipment(ctx context.Context, params CreateShipmentParams) (*models.Shipment, error)
	GetShipment(ctx context.Context, userId, shipmentId string) (*models.Shipment, error)
	ListShipments(ctx context.Context, userId string, limit, offset int) ([]models.Shipment, error)
	FlagForReconciliation(ctx context.Context, userId, shipmentId string) error
	ClearReconciliationFlag(ctx context.Context, userId, shipmentId string) error
}

// Store is the full persistent store contract.
type Store interface {
	UserStore
	AddressStore
	PaymentMethodStore
	LedgerStore
	ShipmentStore

	Ping(ctx context.Context) error
	Close()
}
