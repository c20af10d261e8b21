package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/jfibra/alien-shippo-sub001/internal/ledger"

// Hook observes transactions after they are committed. Replayed results are
// not reported. Hooks run on a single background worker in commit order, so a
// slow hook never delays Credit or Debit; Close waits for queued calls.
type Hook interface {
	OnCommitted(ctx context.Context, tx models.Transaction)
}

// hookQueueSize bounds the committed transactions waiting for hooks. Credit
// and Debit only block on hooks once this many are outstanding.
const hookQueueSize = 1024

type committed struct {
	ctx context.Context
	tx  models.Transaction
}

// Service is the only writer of balances. It retries transient store
// failures and leaves every other error to the caller.
type Service struct {
	store          store.LedgerStore
	currency       string
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	hooks          []Hook
	tracer         trace.Tracer

	mu        sync.RWMutex
	closed    bool
	queue     chan committed
	queueDone chan struct{}
}

func NewService(ledgerStore store.LedgerStore, cfg models.LedgerConfig, hooks ...Hook) *Service {
	currency := models.NormalizeCurrency(cfg.Currency)
	if currency == "" {
		currency = models.DefaultCurrency
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 50 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initial {
		maxBackoff = initial
	}

	s := &Service{
		store:          ledgerStore,
		currency:       currency,
		maxRetries:     maxRetries,
		initialBackoff: initial,
		maxBackoff:     maxBackoff,
		hooks:          hooks,
		tracer:         otel.Tracer(tracerName),
	}
	if len(hooks) > 0 {
		s.queue = make(chan committed, hookQueueSize)
		s.queueDone = make(chan struct{})
		go s.runHooks()
	}
	return s
}

// Close stops accepting hook calls and waits for queued ones to finish.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed || s.queue == nil {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.queueDone
}

func (s *Service) runHooks() {
	defer close(s.queueDone)
	for c := range s.queue {
		for _, h := range s.hooks {
			h.OnCommitted(c.ctx, c.tx)
		}
	}
}

// Currency is the currency every account is held in.
func (s *Service) Currency() string {
	return s.currency
}

func (s *Service) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerResult, error) {
	if params.Currency == "" {
		params.Currency = s.currency
	}
	ctx, span := s.tracer.Start(ctx, "ledger.credit", trace.WithAttributes(
		attribute.String("user_id", params.UserId),
		attribute.String("reference", params.Reference),
		attribute.String("transaction_type", params.TransactionType),
		attribute.String("amount", params.Amount.String()),
	))
	defer span.End()

	result, err := withRetry(ctx, s, "credit", func() (*models.LedgerResult, error) {
		return s.store.Credit(ctx, params)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("replayed", result.Replayed))
	s.notify(ctx, result)
	return result, nil
}

func (s *Service) Debit(ctx context.Context, params store.DebitParams) (*models.LedgerResult, error) {
	if params.Currency == "" {
		params.Currency = s.currency
	}
	ctx, span := s.tracer.Start(ctx, "ledger.debit", trace.WithAttributes(
		attribute.String("user_id", params.UserId),
		attribute.String("reference", params.Reference),
		attribute.String("amount", params.Amount.String()),
	))
	defer span.End()

	result, err := withRetry(ctx, s, "debit", func() (*models.LedgerResult, error) {
		return s.store.Debit(ctx, params)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("replayed", result.Replayed))
	s.notify(ctx, result)
	return result, nil
}

// GetBalance returns a zero balance in the ledger currency for users that
// have never been credited.
func (s *Service) GetBalance(ctx context.Context, userId string) (*models.AccountBalance, error) {
	balance, err := withRetry(ctx, s, "get balance", func() (*models.AccountBalance, error) {
		return s.store.GetBalance(ctx, userId)
	})
	if errors.Is(err, store.ErrNotFound) {
		return &models.AccountBalance{UserId: userId, Currency: s.currency, Balance: decimal.Zero}, nil
	}
	return balance, err
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return withRetry(ctx, s, "get transaction history", func() ([]models.Transaction, error) {
		return s.store.GetTransactionHistory(ctx, userId, limit, offset)
	})
}

func (s *Service) GetTransactionByReference(ctx context.Context, userId, reference string) (*models.Transaction, error) {
	return withRetry(ctx, s, "get transaction", func() (*models.Transaction, error) {
		return s.store.GetTransactionByReference(ctx, userId, reference)
	})
}

func (s *Service) LinkTransaction(ctx context.Context, userId, reference, shipmentId string) error {
	_, err := withRetry(ctx, s, "link transaction", func() (struct{}, error) {
		return struct{}{}, s.store.LinkTransaction(ctx, userId, reference, shipmentId)
	})
	return err
}

func (s *Service) MarkTransactionFailed(ctx context.Context, userId, reference string) error {
	_, err := withRetry(ctx, s, "mark transaction failed", func() (struct{}, error) {
		return struct{}{}, s.store.MarkTransactionFailed(ctx, userId, reference)
	})
	return err
}

func (s *Service) ListPendingDebits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	return withRetry(ctx, s, "list pending debits", func() ([]models.Transaction, error) {
		return s.store.ListPendingDebits(ctx, olderThan, limit)
	})
}

func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	return s.store.ReconcileBalance(ctx, userId)
}

func (s *Service) notify(ctx context.Context, result *models.LedgerResult) {
	if result.Replayed || s.queue == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		zap.L().Warn("Ledger closed, skipping hooks for committed transaction",
			zap.String("reference", result.Transaction.Reference))
		return
	}
	s.queue <- committed{ctx: context.WithoutCancel(ctx), tx: result.Transaction}
}

// withRetry retries fn while it fails with store.ErrTransientStore. The last
// error is returned once the attempts are exhausted.
func withRetry[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = s.maxBackoff

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !errors.Is(err, store.ErrTransientStore) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			zap.L().Warn("Transient ledger error, retrying",
				zap.String("op", op),
				zap.Duration("next_attempt_in", next),
				zap.Error(err))
		}))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// CreditOpening grants a user's starting balance. At most one opening credit
// exists per user, so repeated calls return the first result as replayed.
func (s *Service) CreditOpening(ctx context.Context, userId string, amount decimal.Decimal) (*models.LedgerResult, error) {
	return s.Credit(ctx, store.CreditParams{
		UserId:      userId,
		Amount:      amount,
		Reference:   OpeningReference(userId),
		Provider:    "internal",
		Description: "Opening balance",
	})
}

// Reference helpers shared by the purchase, funding and reconciliation flows.

func LabelReference(shipmentId string) string {
	return "label:" + shipmentId
}

func RefundReference(shipmentId string) string {
	return "refund:" + LabelReference(shipmentId)
}

func FundingReference(orderId string) string {
	return "paypal:" + orderId
}

func OpeningReference(userId string) string {
	return "opening:" + userId
}

// ShipmentIdFromReference extracts the shipment id from a label debit reference.
func ShipmentIdFromReference(reference string) (string, error) {
	const prefix = "label:"
	if len(reference) <= len(prefix) || reference[:len(prefix)] != prefix {
		return "", fmt.Errorf("reference %q is not a label debit", reference)
	}
	return reference[len(prefix):], nil
}
