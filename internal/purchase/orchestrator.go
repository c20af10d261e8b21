// Package purchase turns a stored quote into a paid shipment: debit the
// balance, record the shipment, link the two, and refund when the shipment
// cannot be recorded.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/alert"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/quotes"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/jfibra/alien-shippo-sub001/internal/purchase"

type Ledger interface {
	Credit(ctx context.Context, params store.CreditParams) (*models.LedgerResult, error)
	Debit(ctx context.Context, params store.DebitParams) (*models.LedgerResult, error)
	LinkTransaction(ctx context.Context, userId, reference, shipmentId string) error
	MarkTransactionFailed(ctx context.Context, userId, reference string) error
}

type Shipments interface {
	CreateShipment(ctx context.Context, params store.CreateShipmentParams) (*models.Shipment, error)
	FlagForReconciliation(ctx context.Context, userId, shipmentId string) error
}

type Addresses interface {
	GetAddress(ctx context.Context, userId, addressId string) (*models.Address, error)
}

// Error reports the state a failed purchase stopped in.
type Error struct {
	State      State
	ShipmentId string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("purchase %s stopped in %s: %v", e.ShipmentId, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Orchestrator struct {
	ledger        Ledger
	shipments     Shipments
	addresses     Addresses
	quotes        quotes.Store
	notifier      alert.Notifier
	refundTries   uint
	refundBackoff time.Duration
	newId         func() string
	tracer        trace.Tracer
}

func NewOrchestrator(
	l Ledger,
	shipments Shipments,
	addresses Addresses,
	quoteStore quotes.Store,
	notifier alert.Notifier,
	cfg models.PurchaseConfig,
) *Orchestrator {
	tries := cfg.RefundMaxRetries
	if tries <= 0 {
		tries = 5
	}
	wait := cfg.RefundBackoff
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	if notifier == nil {
		notifier = alert.LogNotifier{}
	}
	return &Orchestrator{
		ledger:        l,
		shipments:     shipments,
		addresses:     addresses,
		quotes:        quoteStore,
		notifier:      notifier,
		refundTries:   uint(tries) + 1,
		refundBackoff: wait,
		newId:         func() string { return uuid.New().String() },
		tracer:        otel.Tracer(tracerName),
	}
}

// Purchase buys the label behind a stored quote with the user's balance.
func (o *Orchestrator) Purchase(ctx context.Context, userId string, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	if userId == "" {
		return nil, store.NewValidationError("user_id", "is required")
	}
	if req.QuoteId == "" {
		return nil, store.NewValidationError("quote_id", "is required")
	}

	ctx, span := o.tracer.Start(ctx, "purchase.label", trace.WithAttributes(
		attribute.String("user_id", userId),
		attribute.String("quote_id", req.QuoteId),
	))
	defer span.End()

	for _, id := range []string{req.FromAddressId, req.ToAddressId} {
		if id == "" {
			continue
		}
		if _, err := o.addresses.GetAddress(ctx, userId, id); err != nil {
			recordError(span, err)
			return nil, err
		}
	}
	// Taking the quote makes a second purchase of it fail with ErrNotFound.
	quote, err := o.quotes.Take(ctx, userId, req.QuoteId)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	m := newMachine()
	shipmentId := o.newId()
	reference := ledger.LabelReference(shipmentId)
	span.SetAttributes(attribute.String("shipment_id", shipmentId))

	log := zap.L().With(
		zap.String("user_id", userId),
		zap.String("shipment_id", shipmentId),
		zap.String("quote_id", quote.QuoteId))

	o.advance(span, m, StateDebiting)
	debit, err := o.ledger.Debit(ctx, store.DebitParams{
		UserId:      userId,
		Amount:      quote.Amount,
		Currency:    quote.Currency,
		Reference:   reference,
		Provider:    quote.Provider,
		Description: fmt.Sprintf("%s %s label", quote.Carrier, quote.ServiceLevelName),
	})
	if err != nil {
		o.advance(span, m, StateDebitingFailedNoRefundNeeded)
		log.Info("Label debit rejected", zap.Error(err))
		recordError(span, err)
		// No money moved, so the quote stays purchasable.
		if saveErr := o.quotes.Save(context.WithoutCancel(ctx), []models.RateQuote{*quote}); saveErr != nil {
			log.Warn("Failed to restore quote after rejected debit", zap.Error(saveErr))
		}
		return nil, &Error{State: m.state, ShipmentId: shipmentId, Err: err}
	}

	shipment, err := o.shipments.CreateShipment(ctx, store.CreateShipmentParams{
		Id:             shipmentId,
		UserId:         userId,
		FromAddressId:  req.FromAddressId,
		ToAddressId:    req.ToAddressId,
		QuoteId:        quote.QuoteId,
		Provider:       quote.Provider,
		ProviderRateId: quote.ProviderRateId,
		Carrier:        quote.Carrier,
		ServiceLevel:   quote.ServiceLevelName,
		Cost:           quote.Amount,
		Currency:       quote.Currency,
	})
	if err != nil {
		o.advance(span, m, StateShipmentRecordFailedAfterDebit)
		log.Error("Failed to record shipment after debit, refunding", zap.Error(err))
		recordError(span, err)

		if refundErr := o.RefundDebit(ctx, userId, shipmentId, quote.Amount, quote.Currency); refundErr != nil {
			o.advance(span, m, StateFailed)
			return nil, &Error{State: m.state, ShipmentId: shipmentId, Err: refundErr}
		}
		o.advance(span, m, StateFailed)
		return nil, &Error{State: m.state, ShipmentId: shipmentId, Err: fmt.Errorf("failed to record shipment, debit refunded: %w", err)}
	}
	o.advance(span, m, StateShipmentRecorded)

	if err := o.ledger.LinkTransaction(ctx, userId, reference, shipmentId); err != nil {
		log.Warn("Failed to link debit to shipment, flagging for reconciliation", zap.Error(err))
		if flagErr := o.shipments.FlagForReconciliation(context.WithoutCancel(ctx), userId, shipmentId); flagErr != nil {
			log.Error("Failed to flag shipment for reconciliation", zap.Error(flagErr))
		}
	} else {
		o.advance(span, m, StateTransactionLinked)
	}
	o.advance(span, m, StateDone)

	log.Info("Label purchased",
		zap.String("amount", quote.Amount.String()),
		zap.String("balance", debit.Balance.String()))

	return &models.PurchaseResult{
		ShipmentId: shipment.Id,
		Status:     shipment.Status,
		State:      string(m.state),
		Amount:     quote.Amount,
		Currency:   quote.Currency,
		Balance:    debit.Balance,
	}, nil
}

// RefundDebit credits back a label debit and marks it failed. The refund runs
// detached from ctx cancellation and is retried with backoff. When it still
// cannot be applied an operator alert is raised and a *store.ConsistencyError
// is returned.
func (o *Orchestrator) RefundDebit(ctx context.Context, userId, shipmentId string, amount decimal.Decimal, currency string) error {
	ctx = context.WithoutCancel(ctx)
	debitRef := ledger.LabelReference(shipmentId)
	refundRef := ledger.RefundReference(shipmentId)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.refundBackoff

	_, err := backoff.Retry(ctx, func() (*models.LedgerResult, error) {
		res, err := o.ledger.Credit(ctx, store.CreditParams{
			UserId:          userId,
			Amount:          amount,
			Currency:        currency,
			Reference:       refundRef,
			TransactionType: models.TransactionTypeRefund,
			Provider:        "internal",
			Description:     "refund for " + debitRef,
			ShipmentId:      shipmentId,
		})
		if errors.Is(err, store.ErrInvalidAmount) || errors.Is(err, store.ErrValidation) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(o.refundTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			zap.L().Warn("Refund failed, retrying",
				zap.String("reference", refundRef),
				zap.Duration("next_attempt_in", next),
				zap.Error(err))
		}))
	if err != nil {
		cerr := &store.ConsistencyError{Op: "refund", Reference: refundRef, Err: err}
		a := alert.New(alert.KindRefundFailed, userId, refundRef, amount, currency,
			"label debit could not be refunded", err)
		if nerr := o.notifier.Notify(ctx, a); nerr != nil {
			zap.L().Error("Failed to deliver operator alert", zap.String("reference", refundRef), zap.Error(nerr))
		}
		return cerr
	}

	if err := o.ledger.MarkTransactionFailed(ctx, userId, debitRef); err != nil {
		// The reconciler finishes this once the refund exists.
		zap.L().Warn("Refund applied but debit not marked failed",
			zap.String("reference", debitRef),
			zap.Error(err))
	}

	zap.L().Info("Label debit refunded",
		zap.String("user_id", userId),
		zap.String("reference", refundRef),
		zap.String("amount", amount.String()))
	return nil
}

func (o *Orchestrator) advance(span trace.Span, m *machine, next State) {
	if err := m.advance(next); err != nil {
		// Only reachable through a programming error in Purchase.
		zap.L().DPanic("Purchase state machine violated", zap.Error(err))
		return
	}
	span.AddEvent("state", trace.WithAttributes(attribute.String("state", string(next))))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
