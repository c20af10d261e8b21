package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/alert"
	"github.com/jfibra/alien-shippo-sub001/internal/database"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/quotes"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *recordingNotifier) Notify(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

// failingShipments rejects every insert.
type failingShipments struct {
	Shipments
}

func (failingShipments) CreateShipment(context.Context, store.CreateShipmentParams) (*models.Shipment, error) {
	return nil, errors.New("disk I/O error")
}

// unlinkableLedger fails LinkTransaction and delegates the rest.
type unlinkableLedger struct {
	Ledger
}

func (unlinkableLedger) LinkTransaction(context.Context, string, string, string) error {
	return store.ErrTransientStore
}

// brokenRefundLedger fails every credit.
type brokenRefundLedger struct {
	Ledger
	credits int
}

func (b *brokenRefundLedger) Credit(context.Context, store.CreditParams) (*models.LedgerResult, error) {
	b.credits++
	return nil, store.ErrTransientStore
}

type fixture struct {
	db       *database.Service
	ledger   *ledger.Service
	quotes   *quotes.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opening string) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.CreateUser(ctx, "alice", "Alice", "alice@example.com")
	require.NoError(t, err)

	l := ledger.NewService(db, models.LedgerConfig{Currency: "USD", MaxRetries: 1, InitialBackoff: time.Millisecond})
	if opening != "" {
		_, err = l.Credit(ctx, store.CreditParams{
			UserId:    "alice",
			Amount:    decimal.RequireFromString(opening),
			Reference: "paypal:opening",
			Provider:  "paypal",
		})
		require.NoError(t, err)
	}

	return &fixture{db: db, ledger: l, quotes: quotes.NewMemoryStore(), notifier: &recordingNotifier{}}
}

func (f *fixture) orchestrator(l Ledger, s Shipments) *Orchestrator {
	return NewOrchestrator(l, s, f.db, f.quotes, f.notifier, models.PurchaseConfig{
		RefundMaxRetries: 2,
		RefundBackoff:    time.Millisecond,
	})
}

func (f *fixture) storeQuote(t *testing.T, id, amount string, expiresIn time.Duration) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.quotes.Save(context.Background(), []models.RateQuote{{
		QuoteId:          id,
		UserId:           "alice",
		Provider:         "shippo",
		Carrier:          "USPS",
		ServiceLevelCode: "usps_priority",
		ServiceLevelName: "Priority Mail",
		Amount:           decimal.RequireFromString(amount),
		Currency:         "USD",
		ProviderRateId:   "rate_1",
		CreatedAt:        now,
		ExpiresAt:        now.Add(expiresIn),
	}}))
}

func TestPurchase_Success(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(f.ledger, f.db)

	result, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.NoError(t, err)

	assert.Equal(t, string(StateDone), result.State)
	assert.Equal(t, models.ShipmentStatusCreated, result.Status)
	assert.Equal(t, "37.66", result.Balance.StringFixed(2))

	balance, err := f.ledger.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "37.66", balance.Balance.StringFixed(2))

	shipment, err := f.db.GetShipment(context.Background(), "alice", result.ShipmentId)
	require.NoError(t, err)
	assert.True(t, shipment.Cost.Equal(decimal.RequireFromString("12.34")))
	assert.False(t, shipment.NeedsReconciliation)

	debit, err := f.ledger.GetTransactionByReference(context.Background(), "alice", ledger.LabelReference(result.ShipmentId))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, debit.Status)
	assert.Equal(t, result.ShipmentId, debit.ShipmentId)
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	f := newFixture(t, "10.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(f.ledger, f.db)

	_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateDebitingFailedNoRefundNeeded, perr.State)

	balance, err := f.ledger.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "10.00", balance.Balance.StringFixed(2))

	shipments, err := f.db.ListShipments(context.Background(), "alice", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, shipments)

	// the rejected quote can still be bought once the balance is topped up
	_, err = f.ledger.Credit(context.Background(), store.CreditParams{
		UserId:    "alice",
		Amount:    decimal.RequireFromString("5.00"),
		Reference: "paypal:top-up",
		Provider:  "paypal",
	})
	require.NoError(t, err)

	result, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.NoError(t, err)
	assert.Equal(t, "2.66", result.Balance.StringFixed(2))
}

func TestPurchase_SameQuoteTwice(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(f.ledger, f.db)

	_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.NoError(t, err)

	_, err = o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	balance, err := f.ledger.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "37.66", balance.Balance.StringFixed(2))

	shipments, err := f.db.ListShipments(context.Background(), "alice", 10, 0)
	require.NoError(t, err)
	assert.Len(t, shipments, 1)
}

func TestPurchase_SameQuoteConcurrently(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(f.ledger, f.db)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, store.ErrNotFound)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	balance, err := f.ledger.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "37.66", balance.Balance.StringFixed(2))
}

func TestPurchase_ShipmentFailureRefundsInFull(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(f.ledger, failingShipments{Shipments: f.db})

	_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StateFailed, perr.State)

	balance, err := f.ledger.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "50.00", balance.Balance.StringFixed(2))

	debit, err := f.ledger.GetTransactionByReference(context.Background(), "alice", ledger.LabelReference(perr.ShipmentId))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, debit.Status)

	refund, err := f.ledger.GetTransactionByReference(context.Background(), "alice", ledger.RefundReference(perr.ShipmentId))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRefund, refund.TransactionType)

	require.NoError(t, f.ledger.ReconcileBalance(context.Background(), "alice"))
	assert.Empty(t, f.notifier.alerts)
}

func TestPurchase_RefundFailureRaisesAlert(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	broken := &brokenRefundLedger{Ledger: f.ledger}
	o := f.orchestrator(broken, failingShipments{Shipments: f.db})

	_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.ErrorIs(t, err, store.ErrConsistency)

	var cerr *store.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "refund", cerr.Op)
	assert.Equal(t, 3, broken.credits)

	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, alert.KindRefundFailed, f.notifier.alerts[0].Kind)
	assert.Equal(t, cerr.Reference, f.notifier.alerts[0].Reference)
}

func TestPurchase_LinkFailureFlagsShipment(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(unlinkableLedger{Ledger: f.ledger}, f.db)

	result, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1"})
	require.NoError(t, err)
	assert.Equal(t, string(StateDone), result.State)

	shipment, err := f.db.GetShipment(context.Background(), "alice", result.ShipmentId)
	require.NoError(t, err)
	assert.True(t, shipment.NeedsReconciliation)

	debit, err := f.ledger.GetTransactionByReference(context.Background(), "alice", ledger.LabelReference(result.ShipmentId))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, debit.Status)
}

func TestPurchase_QuoteChecks(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "stale", "5.00", -time.Second)
	o := f.orchestrator(f.ledger, f.db)

	_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "stale"})
	assert.ErrorIs(t, err, store.ErrQuoteExpired)

	_, err = o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = o.Purchase(context.Background(), "bob", models.PurchaseRequest{QuoteId: "stale"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = o.Purchase(context.Background(), "alice", models.PurchaseRequest{})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestPurchase_UnknownAddressRejectedBeforeDebit(t *testing.T) {
	f := newFixture(t, "50.00")
	f.storeQuote(t, "q1", "12.34", time.Minute)
	o := f.orchestrator(f.ledger, f.db)

	_, err := o.Purchase(context.Background(), "alice", models.PurchaseRequest{QuoteId: "q1", FromAddressId: "nope"})
	require.ErrorIs(t, err, store.ErrNotFound)

	balance, err := f.ledger.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "50.00", balance.Balance.StringFixed(2))
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateQuoted, StateDebiting, true},
		{StateQuoted, StateShipmentRecorded, false},
		{StateDebiting, StateShipmentRecordFailedAfterDebit, true},
		{StateShipmentRecordFailedAfterDebit, StateFailed, true},
		{StateShipmentRecordFailedAfterDebit, StateDone, false},
		{StateShipmentRecorded, StateDone, true},
		{StateTransactionLinked, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateDone, StateDebiting, false},
		{StateDebitingFailedNoRefundNeeded, StateDebiting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}

	m := newMachine()
	require.NoError(t, m.advance(StateDebiting))
	require.NoError(t, m.advance(StateShipmentRecorded))
	require.NoError(t, m.advance(StateTransactionLinked))
	require.NoError(t, m.advance(StateDone))
	assert.Error(t, m.advance(StateDebiting))
	assert.Equal(t, []State{StateQuoted, StateDebiting, StateShipmentRecorded, StateTransactionLinked, StateDone}, m.history)
}
