package formance

import (
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
)

// Account layout:
//   @users:<id>           prepaid balance of one user
//   @platform:shipping    labels paid for out of balances
// Deposits come from @world.

const numscriptDeposit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $reference
  string $provider
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "deposit")
set_tx_meta("reference", $reference)
set_tx_meta("provider", $provider)
`

const numscriptRefund = `vars {
  asset $asset
  number $amount
  account $user_id
  string $reference
  string $shipment_id
}

send [$asset $amount] (
  source = @platform:shipping allowing unbounded overdraft
  destination = @users:$user_id
)

set_tx_meta("event_type", "refund")
set_tx_meta("reference", $reference)
set_tx_meta("shipment_id", $shipment_id)
`

const numscriptDebit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $reference
  string $provider
}

send [$asset $amount] (
  source = @users:$user_id allowing unbounded overdraft
  destination = @platform:shipping
)

set_tx_meta("event_type", "label_debit")
set_tx_meta("reference", $reference)
set_tx_meta("provider", $provider)
`

// formanceAsset returns the Formance UMN notation, e.g. "USD/2".
func formanceAsset(currency string) string {
	return fmt.Sprintf("%s/%d", currency, models.CurrencyPrecision(currency))
}

// smallestUnits renders an amount as an integer string of minor units.
func smallestUnits(tx models.Transaction) string {
	prec := models.CurrencyPrecision(tx.Currency)
	return tx.Amount.Abs().Shift(prec).BigInt().String()
}

func buildPostTransaction(tx models.Transaction) (shared.V2PostTransaction, error) {
	if tx.Reference == "" {
		return shared.V2PostTransaction{}, fmt.Errorf("transaction %s has no reference", tx.Id)
	}

	vars := map[string]string{
		"asset":     formanceAsset(tx.Currency),
		"amount":    smallestUnits(tx),
		"user_id":   tx.UserId,
		"reference": tx.Reference,
	}

	var script string
	switch tx.TransactionType {
	case models.TransactionTypeDeposit:
		script = numscriptDeposit
		vars["provider"] = tx.Provider
	case models.TransactionTypeRefund:
		script = numscriptRefund
		vars["shipment_id"] = tx.ShipmentId
	case models.TransactionTypeDebit:
		script = numscriptDebit
		vars["provider"] = tx.Provider
	default:
		return shared.V2PostTransaction{}, fmt.Errorf("unsupported transaction type %q", tx.TransactionType)
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(tx.Reference),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
		Metadata: map[string]string{
			"local_transaction_id": tx.Id,
		},
	}
	if !tx.CreatedAt.IsZero() {
		ts := tx.CreatedAt
		postTx.Timestamp = &ts
	}
	return postTx, nil
}

func strPtr(s string) *string { return &s }
