package formance

import (
	"math/big"
	"testing"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		currency string
		want     string
	}{
		{"USD", "USD/2"},
		{"EUR", "EUR/2"},
		{"JPY", "JPY/0"},
		{"XYZ", "XYZ/2"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.currency); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.currency, got, tt.want)
		}
	}
}

func TestBigIntToDecimal(t *testing.T) {
	result := bigIntToDecimal(big.NewInt(3766), "USD")
	if !result.Equal(decimal.RequireFromString("37.66")) {
		t.Errorf("expected 37.66, got %s", result.String())
	}

	result = bigIntToDecimal(big.NewInt(500), "JPY")
	if !result.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected 500, got %s", result.String())
	}

	// nil should return zero
	result = bigIntToDecimal(nil, "USD")
	if !result.IsZero() {
		t.Errorf("expected 0, got %s", result.String())
	}
}

func TestVolumeBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		"USD/2": {Input: big.NewInt(5000), Output: big.NewInt(1234)},
	}
	if got := volumeBalance(vols, "USD/2"); got == nil || got.Int64() != 3766 {
		t.Errorf("expected 3766, got %v", got)
	}
	if got := volumeBalance(vols, "EUR/2"); got != nil {
		t.Errorf("expected nil for missing asset, got %v", got)
	}
}

func TestBuildPostTransaction(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		tx         models.Transaction
		wantScript string
		wantAmount string
	}{
		{
			name: "deposit",
			tx: models.Transaction{Id: "t1", UserId: "alice", TransactionType: models.TransactionTypeDeposit,
				Amount: decimal.RequireFromString("50.00"), Currency: "USD", Reference: "paypal:O-1", Provider: "paypal", CreatedAt: created},
			wantScript: numscriptDeposit,
			wantAmount: "5000",
		},
		{
			name: "debit is posted as a positive amount",
			tx: models.Transaction{Id: "t2", UserId: "alice", TransactionType: models.TransactionTypeDebit,
				Amount: decimal.RequireFromString("-12.34"), Currency: "USD", Reference: "label:s1", Provider: "shippo"},
			wantScript: numscriptDebit,
			wantAmount: "1234",
		},
		{
			name: "refund",
			tx: models.Transaction{Id: "t3", UserId: "alice", TransactionType: models.TransactionTypeRefund,
				Amount: decimal.RequireFromString("12.34"), Currency: "USD", Reference: "refund:label:s1", ShipmentId: "s1"},
			wantScript: numscriptRefund,
			wantAmount: "1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := buildPostTransaction(tt.tx)
			if err != nil {
				t.Fatalf("buildPostTransaction failed: %v", err)
			}
			if post.Reference == nil || *post.Reference != tt.tx.Reference {
				t.Errorf("expected reference %s, got %v", tt.tx.Reference, post.Reference)
			}
			if post.Script.Plain != tt.wantScript {
				t.Errorf("unexpected script for %s", tt.tx.TransactionType)
			}
			if post.Script.Vars["amount"] != tt.wantAmount {
				t.Errorf("expected amount %s, got %s", tt.wantAmount, post.Script.Vars["amount"])
			}
			if post.Script.Vars["asset"] != "USD/2" {
				t.Errorf("expected asset USD/2, got %s", post.Script.Vars["asset"])
			}
			if post.Metadata["local_transaction_id"] != tt.tx.Id {
				t.Errorf("expected local id metadata %s", tt.tx.Id)
			}
		})
	}

	if _, err := buildPostTransaction(models.Transaction{TransactionType: models.TransactionTypeDeposit}); err == nil {
		t.Error("expected error for missing reference")
	}
	if _, err := buildPostTransaction(models.Transaction{Reference: "x", TransactionType: "withdrawal"}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestIsConflictError(t *testing.T) {
	// nil error should not be a conflict
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
}
