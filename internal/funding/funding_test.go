package funding

import (
	"context"
	"testing"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/database"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/paypal"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stateGateway serves one fixed order.
type stateGateway struct {
	paypal.Gateway
	order    paypal.Order
	captures int
}

func (g *stateGateway) GetOrder(context.Context, string) (*paypal.Order, error) {
	o := g.order
	return &o, nil
}

func (g *stateGateway) CaptureOrder(context.Context, string) (*paypal.Order, error) {
	g.captures++
	return nil, &store.ProviderError{Provider: paypal.ProviderName, Op: "capture order", Err: assert.AnError}
}

func newLedger(t *testing.T) *ledger.Service {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.CreateUser(context.Background(), "alice", "Alice", "alice@example.com")
	require.NoError(t, err)
	return ledger.NewService(db, models.LedgerConfig{Currency: "USD"})
}

func TestFundAccount_CapturesAndCredits(t *testing.T) {
	l := newLedger(t)
	gw := paypal.NewMockGateway()
	s := NewService(l, gw, nil)
	ctx := context.Background()

	order, err := s.CreateFundingOrder(ctx, "alice", decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ApprovalURL)

	result, err := s.FundAccount(ctx, "alice", order.OrderId)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, "25.00", result.NewBalance.StringFixed(2))

	again, err := s.FundAccount(ctx, "alice", order.OrderId)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, result.TransactionId, again.TransactionId)
	assert.Equal(t, "25.00", again.NewBalance.StringFixed(2))

	history, err := l.GetTransactionHistory(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ledger.FundingReference(order.OrderId), history[0].Reference)
}

func TestFundAccount_RejectsForeignOrder(t *testing.T) {
	l := newLedger(t)
	gw := paypal.NewMockGateway()
	s := NewService(l, gw, nil)
	ctx := context.Background()

	order, err := gw.CreateOrder(ctx, paypal.CreateOrderRequest{UserId: "mallory", Amount: decimal.NewFromInt(5), Currency: "USD"})
	require.NoError(t, err)

	_, err = s.FundAccount(ctx, "alice", order.Id)
	require.ErrorIs(t, err, store.ErrValidation)

	balance, err := l.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
}

func TestFundAccount_UnapprovedOrder(t *testing.T) {
	l := newLedger(t)
	gw := &stateGateway{order: paypal.Order{
		Id:            "O-1",
		Status:        paypal.OrderStatusCreated,
		PurchaseUnits: []paypal.PurchaseUnit{{CustomId: "alice"}},
	}}
	s := NewService(l, gw, nil)

	_, err := s.FundAccount(context.Background(), "alice", "O-1")
	require.ErrorIs(t, err, store.ErrProviderFailure)
	assert.Contains(t, err.Error(), "CREATED")
	assert.Zero(t, gw.captures)
}

func TestFundAccount_CaptureFailure(t *testing.T) {
	l := newLedger(t)
	gw := &stateGateway{order: paypal.Order{
		Id:            "O-2",
		Status:        paypal.OrderStatusApproved,
		PurchaseUnits: []paypal.PurchaseUnit{{CustomId: "alice"}},
	}}
	s := NewService(l, gw, nil)

	_, err := s.FundAccount(context.Background(), "alice", "O-2")
	require.ErrorIs(t, err, store.ErrProviderFailure)
	assert.Equal(t, 1, gw.captures)

	_, err = l.GetTransactionByReference(context.Background(), "alice", ledger.FundingReference("O-2"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateFundingOrder_Validation(t *testing.T) {
	s := NewService(newLedger(t), paypal.NewMockGateway(), nil)

	_, err := s.CreateFundingOrder(context.Background(), "alice", decimal.RequireFromString("0"))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = s.CreateFundingOrder(context.Background(), "alice", decimal.RequireFromString("1.234"))
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = s.CreateFundingOrder(context.Background(), "", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, store.ErrValidation)
}
