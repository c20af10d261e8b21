package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"12.34", "USD", 1234},
		{"0.01", "usd", 1},
		{"500", "JPY", 500},
		{"92233720368547758.07", "USD", 9223372036854775807},
	}
	for _, tt := range tests {
		got, err := ToMinor(decimal.RequireFromString(tt.amount), tt.currency)
		if err != nil {
			t.Errorf("ToMinor(%s %s) failed: %v", tt.amount, tt.currency, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ToMinor(%s %s) = %d, want %d", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestToMinor_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"sub-cent", "1.005"},
		// both used to wrap around int64 into small or negative values
		{"wraps to one cent", "184467440737095516.17"},
		{"wraps negative", "184467440737095515.16"},
		{"just above int64", "92233720368547758.08"},
		{"far below int64", "-92233720368547758.09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := ToMinor(decimal.RequireFromString(tt.amount), "USD"); err == nil {
				t.Errorf("Expected error, got %d", got)
			}
		})
	}
}
