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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
)

const paypalSandboxURL = "https://api-m.sandbox.paypal.com"

func Load() (*models.Config, error) {
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Driver:           getEnvString("DB_DRIVER", "sqlite3"),
			Path:             getEnvString("DATABASE_PATH", "shipping.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
		},
		Ledger: models.LedgerConfig{
			Currency:   models.NormalizeCurrency(getEnvString("LEDGER_CURRENCY", models.DefaultCurrency)),
			MaxRetries: getEnvInt("LEDGER_MAX_RETRIES", 3),
		},
		Rates: models.RatesConfig{
			ProvidersFile: getEnvString("PROVIDERS_FILE", "providers.yaml"),
		},
		QuoteStore: models.QuoteStoreConfig{
			Backend:   getEnvString("QUOTE_STORE", "memory"),
			RedisAddr: getEnvString("REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvInt("REDIS_DB", 0),
		},
		Purchase: models.PurchaseConfig{
			RefundMaxRetries: getEnvInt("PURCHASE_REFUND_MAX_RETRIES", 5),
		},
		PayPal: models.PayPalConfig{
			BaseURL:      getEnvString("PAYPAL_BASE_URL", paypalSandboxURL),
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			ReturnURL:    getEnvString("PAYPAL_RETURN_URL", "http://localhost:8080/funding/return"),
			CancelURL:    getEnvString("PAYPAL_CANCEL_URL", "http://localhost:8080/funding/cancel"),
			BrandName:    getEnvString("PAYPAL_BRAND_NAME", "Shipping Balance"),
		},
		Alerts: models.AlertConfig{
			AMQPURL:    os.Getenv("ALERT_AMQP_URL"),
			Exchange:   getEnvString("ALERT_EXCHANGE", "shipping.alerts"),
			RoutingKey: getEnvString("ALERT_ROUTING_KEY", "alerts"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "shipping-balances"),
		},
		Reconciler: models.ReconcilerConfig{
			BatchSize: getEnvInt("RECONCILER_BATCH_SIZE", 100),
		},
		Server: models.ServerConfig{
			ListenAddr: getEnvString("SERVER_LISTEN_ADDR", ":8080"),
		},
		Telemetry: models.TelemetryConfig{
			ServiceName: getEnvString("OTEL_SERVICE_NAME", "shipping-ledger"),
			Environment: getEnvString("DEPLOY_ENV", "development"),
			Version:     getEnvString("SERVICE_VERSION", "dev"),
		},
	}
	// Without credentials the PayPal gateway runs in-process.
	cfg.PayPal.Mock = getEnvBool("PAYPAL_MOCK", cfg.PayPal.ClientID == "")

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &cfg.Database.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &cfg.Database.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &cfg.Database.PingTimeout},
		{"LEDGER_INITIAL_BACKOFF", 50 * time.Millisecond, &cfg.Ledger.InitialBackoff},
		{"LEDGER_MAX_BACKOFF", time.Second, &cfg.Ledger.MaxBackoff},
		{"RATE_PROVIDER_TIMEOUT", 8 * time.Second, &cfg.Rates.ProviderTimeout},
		{"RATE_AGGREGATE_TIMEOUT", 10 * time.Second, &cfg.Rates.AggregateTimeout},
		{"QUOTE_TTL", 5 * time.Minute, &cfg.Rates.QuoteTTL},
		{"REDIS_DIAL_TIMEOUT", 5 * time.Second, &cfg.QuoteStore.DialTimeout},
		{"PURCHASE_REFUND_BACKOFF", 100 * time.Millisecond, &cfg.Purchase.RefundBackoff},
		{"RECONCILER_INTERVAL", time.Minute, &cfg.Reconciler.Interval},
		{"RECONCILER_GRACE_PERIOD", 5 * time.Minute, &cfg.Reconciler.GracePeriod},
		{"SERVER_READ_TIMEOUT", 15 * time.Second, &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", 30 * time.Second, &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", 15 * time.Second, &cfg.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = value
	}

	opening, err := getEnvDecimal("OPENING_BALANCE", decimal.Zero)
	if err != nil {
		return nil, err
	}
	if opening.IsNegative() {
		return nil, fmt.Errorf("invalid OPENING_BALANCE: %s must not be negative", opening)
	}
	cfg.Ledger.OpeningBalance = opening

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *models.Config) error {
	switch cfg.Database.Driver {
	case "sqlite3", "pgx", "postgres":
	default:
		return fmt.Errorf("invalid DB_DRIVER: %q (want sqlite3 or pgx)", cfg.Database.Driver)
	}
	switch cfg.QuoteStore.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid QUOTE_STORE: %q (want memory or redis)", cfg.QuoteStore.Backend)
	}
	if cfg.Rates.QuoteTTL <= 0 {
		return fmt.Errorf("invalid QUOTE_TTL: must be positive")
	}
	if cfg.Rates.ProviderTimeout > cfg.Rates.AggregateTimeout {
		return fmt.Errorf("RATE_PROVIDER_TIMEOUT (%s) exceeds RATE_AGGREGATE_TIMEOUT (%s)",
			cfg.Rates.ProviderTimeout, cfg.Rates.AggregateTimeout)
	}
	if !cfg.PayPal.Mock && (cfg.PayPal.ClientID == "" || cfg.PayPal.ClientSecret == "") {
		return fmt.Errorf("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required unless PAYPAL_MOCK is set")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return amount, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
