package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Rates      RatesConfig
	QuoteStore QuoteStoreConfig
	Purchase   PurchaseConfig
	PayPal     PayPalConfig
	Alerts     AlertConfig
	Formance   FormanceConfig
	Reconciler ReconcilerConfig
	Server     ServerConfig
	Telemetry  TelemetryConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver           string // sqlite3 or pgx
	Path             string // sqlite file path, or postgres DSN when Driver is pgx
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// LedgerConfig holds balance and retry settings
type LedgerConfig struct {
	Currency       string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	OpeningBalance decimal.Decimal // credited to dummy users by cmd/setup
}

// RatesConfig holds rate aggregation settings
type RatesConfig struct {
	ProvidersFile    string
	ProviderTimeout  time.Duration
	AggregateTimeout time.Duration
	QuoteTTL         time.Duration
}

// QuoteStoreConfig selects the quote store backend
type QuoteStoreConfig struct {
	Backend     string // memory or redis
	RedisAddr   string
	RedisDB     int
	DialTimeout time.Duration
}

// PurchaseConfig holds orchestrator settings
type PurchaseConfig struct {
	RefundMaxRetries int
	RefundBackoff    time.Duration
}

// PayPalConfig holds external payment provider settings
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
	BrandName    string
	Mock         bool // in-process orders, approved on creation
}

// AlertConfig holds operator alert settings
type AlertConfig struct {
	AMQPURL    string
	Exchange   string
	RoutingKey string
}

// FormanceConfig holds the optional ledger mirror settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether the mirror has enough settings to connect.
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// ReconcilerConfig holds settings for the pending-debit sweep
type ReconcilerConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// TelemetryConfig holds tracing resource attributes
type TelemetryConfig struct {
	ServiceName string
	Environment string
	Version     string
}
