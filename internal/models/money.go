package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "USD"

// MaxMovementAmount bounds a single credit or debit in major units.
var MaxMovementAmount = decimal.NewFromInt(1_000_000)

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// currencyPrecision maps ISO-4217 codes to their number of minor-unit digits.
var currencyPrecision = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"CAD": 2,
	"AUD": 2,
	"MXN": 2,
	"JPY": 0,
}

// CurrencyPrecision returns the minor-unit digits for a currency (2 when unknown).
func CurrencyPrecision(currency string) int32 {
	if p, ok := currencyPrecision[strings.ToUpper(currency)]; ok {
		return p
	}
	return 2
}

// NormalizeCurrency upper-cases a currency code and applies the default.
func NormalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

// ToMinor converts an amount into integer minor units. Amounts with more
// fractional digits than the currency allows are rejected.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	precision := CurrencyPrecision(currency)
	if !amount.Equal(amount.Truncate(precision)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places for %s", amount.String(), precision, currency)
	}
	minor := amount.Shift(precision)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s is not representable in %s minor units", amount.String(), currency)
	}
	if minor.LessThan(minInt64) || minor.GreaterThan(maxInt64) {
		return 0, fmt.Errorf("amount %s is out of range for %s minor units", amount.String(), currency)
	}
	return minor.IntPart(), nil
}

// FromMinor converts integer minor units back into a decimal amount.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyPrecision(currency))
}

// RoundUp rounds an amount up to the currency precision.
func RoundUp(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundCeil(CurrencyPrecision(currency))
}

// FormatAmount renders an amount with exactly the currency precision.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(CurrencyPrecision(currency))
}
