// Package alert raises operator alerts for money movements that could not be
// completed automatically.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Alert kinds
const (
	KindRefundFailed     = "refund_failed"
	KindReconcileFailed  = "reconcile_failed"
	KindBalanceMismatch  = "balance_mismatch"
	KindFundingUnapplied = "funding_unapplied"
)

type Alert struct {
	Kind      string          `json:"kind"`
	UserId    string          `json:"user_id"`
	Reference string          `json:"reference,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	Message   string          `json:"message"`
	Error     string          `json:"error,omitempty"`
	RaisedAt  time.Time       `json:"raised_at"`
}

// New builds an alert stamped with the current time.
func New(kind, userId, reference string, amount decimal.Decimal, currency, message string, err error) Alert {
	a := Alert{
		Kind:      kind,
		UserId:    userId,
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		Message:   message,
		RaisedAt:  time.Now().UTC(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the global zap logger at error level.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, a Alert) error {
	zap.L().Error("OPERATOR ALERT",
		zap.String("kind", a.Kind),
		zap.String("user_id", a.UserId),
		zap.String("reference", a.Reference),
		zap.String("amount", a.Amount.String()),
		zap.String("currency", a.Currency),
		zap.String("message", a.Message),
		zap.String("error", a.Error))
	return nil
}

// Multi delivers every alert to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = LogNotifier{}
	_ Notifier = Multi{}
	_ Notifier = (*AMQPNotifier)(nil)
)
