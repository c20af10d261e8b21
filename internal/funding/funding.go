// Package funding moves money captured by PayPal into the prepaid balance.
package funding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/alert"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/paypal"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/jfibra/alien-shippo-sub001/internal/funding"

type Ledger interface {
	Currency() string
	Credit(ctx context.Context, params store.CreditParams) (*models.LedgerResult, error)
	GetTransactionByReference(ctx context.Context, userId, reference string) (*models.Transaction, error)
}

type Service struct {
	ledger   Ledger
	gateway  paypal.Gateway
	notifier alert.Notifier
	tracer   trace.Tracer
}

func NewService(l Ledger, gateway paypal.Gateway, notifier alert.Notifier) *Service {
	if notifier == nil {
		notifier = alert.LogNotifier{}
	}
	return &Service{ledger: l, gateway: gateway, notifier: notifier, tracer: otel.Tracer(tracerName)}
}

// CreateFundingOrder opens a PayPal order for amount in the ledger currency.
func (s *Service) CreateFundingOrder(ctx context.Context, userId string, amount decimal.Decimal) (*models.FundingOrder, error) {
	if userId == "" {
		return nil, store.NewValidationError("user_id", "is required")
	}
	currency := s.ledger.Currency()
	if _, err := models.ToMinor(amount, currency); err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s is not a valid %s amount", store.ErrInvalidAmount, amount.String(), currency)
	}

	ctx, span := s.tracer.Start(ctx, "funding.create_order", trace.WithAttributes(
		attribute.String("user_id", userId),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	order, err := s.gateway.CreateOrder(ctx, paypal.CreateOrderRequest{
		UserId:      userId,
		Amount:      amount,
		Currency:    currency,
		Description: "Prepaid shipping balance",
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	zap.L().Info("Funding order created",
		zap.String("user_id", userId),
		zap.String("order_id", order.Id),
		zap.String("amount", amount.String()))

	return &models.FundingOrder{
		OrderId:     order.Id,
		Status:      order.Status,
		Amount:      amount,
		Currency:    currency,
		ApprovalURL: order.ApprovalURL(),
	}, nil
}

// FundAccount captures an approved order and credits the captured amount.
// Funding the same order twice returns the first result.
func (s *Service) FundAccount(ctx context.Context, userId, orderId string) (*models.FundingResult, error) {
	if userId == "" {
		return nil, store.NewValidationError("user_id", "is required")
	}
	if orderId == "" {
		return nil, store.NewValidationError("order_id", "is required")
	}
	reference := ledger.FundingReference(orderId)

	ctx, span := s.tracer.Start(ctx, "funding.fund_account", trace.WithAttributes(
		attribute.String("user_id", userId),
		attribute.String("order_id", orderId),
	))
	defer span.End()

	if existing, err := s.ledger.GetTransactionByReference(ctx, userId, reference); err == nil {
		zap.L().Info("Funding order already applied", zap.String("order_id", orderId))
		return replayed(orderId, existing), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		recordError(span, err)
		return nil, err
	}

	order, err := s.gateway.GetOrder(ctx, orderId)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if order.CustomId() != userId {
		err := store.NewValidationError("order_id", "does not belong to this user")
		recordError(span, err)
		return nil, err
	}

	switch order.Status {
	case paypal.OrderStatusApproved:
		order, err = s.gateway.CaptureOrder(ctx, orderId)
		if err != nil {
			recordError(span, err)
			return nil, err
		}
	case paypal.OrderStatusCompleted:
		zap.L().Info("Funding order was captured earlier", zap.String("order_id", orderId))
	default:
		err := &store.ProviderError{
			Provider: paypal.ProviderName,
			Op:       "fund account",
			Err:      fmt.Errorf("order %s is %s, expected APPROVED or COMPLETED", orderId, order.Status),
		}
		recordError(span, err)
		return nil, err
	}

	amount, currency, err := order.CapturedAmount()
	if err != nil {
		err = &store.ProviderError{Provider: paypal.ProviderName, Op: "fund account", Err: err}
		recordError(span, err)
		return nil, err
	}

	// Money has left the payer from here on; the credit must not be dropped
	// because the caller went away.
	creditCtx := context.WithoutCancel(ctx)
	result, err := s.ledger.Credit(creditCtx, store.CreditParams{
		UserId:          userId,
		Amount:          amount,
		Currency:        currency,
		Reference:       reference,
		TransactionType: models.TransactionTypeDeposit,
		Provider:        paypal.ProviderName,
		Description:     "PayPal order " + orderId,
	})
	if err != nil {
		recordError(span, err)
		a := alert.New(alert.KindFundingUnapplied, userId, reference, amount, currency,
			"captured PayPal payment was not credited", err)
		if nerr := s.notifier.Notify(creditCtx, a); nerr != nil {
			zap.L().Error("Failed to deliver operator alert", zap.String("reference", reference), zap.Error(nerr))
		}
		return nil, err
	}

	zap.L().Info("Account funded",
		zap.String("user_id", userId),
		zap.String("order_id", orderId),
		zap.String("amount", amount.String()),
		zap.String("new_balance", result.Balance.String()),
		zap.Bool("replayed", result.Replayed))

	return &models.FundingResult{
		OrderId:       orderId,
		TransactionId: result.Transaction.Id,
		Amount:        amount,
		Currency:      currency,
		NewBalance:    result.Balance,
		Replayed:      result.Replayed,
	}, nil
}

// replayed reports the outcome of the credit an earlier capture produced.
func replayed(orderId string, tx *models.Transaction) *models.FundingResult {
	return &models.FundingResult{
		OrderId:       orderId,
		TransactionId: tx.Id,
		Amount:        tx.Amount.Abs(),
		Currency:      tx.Currency,
		NewBalance:    tx.BalanceAfter,
		Replayed:      true,
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
