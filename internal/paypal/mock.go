package paypal

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/google/uuid"
)

// MockGateway keeps orders in memory and approves them as soon as they are
// created. It is used for local runs without PayPal credentials.
type MockGateway struct {
	mu     sync.Mutex
	orders map[string]*Order
}

var _ Gateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{orders: make(map[string]*Order)}
}

func (m *MockGateway) CreateOrder(_ context.Context, r CreateOrderRequest) (*Order, error) {
	currency := models.NormalizeCurrency(r.Currency)
	id := "MOCK-" + uuid.New().String()
	order := &Order{
		Id:     id,
		Status: OrderStatusApproved,
		PurchaseUnits: []PurchaseUnit{{
			ReferenceId: r.UserId,
			CustomId:    r.UserId,
			Amount:      Money{CurrencyCode: currency, Value: r.Amount.StringFixed(models.CurrencyPrecision(currency))},
		}},
		Links: []Link{{Href: "https://www.sandbox.paypal.com/checkoutnow?token=" + id, Rel: "approve", Method: "GET"}},
	}

	m.mu.Lock()
	m.orders[id] = order
	m.mu.Unlock()

	copied := *order
	return &copied, nil
}

func (m *MockGateway) GetOrder(_ context.Context, orderId string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderId]
	if !ok {
		return nil, &store.ProviderError{Provider: ProviderName, Op: "get order", Err: fmt.Errorf("unexpected status 404: order %s not found", orderId)}
	}
	copied := *order
	return &copied, nil
}

func (m *MockGateway) CaptureOrder(_ context.Context, orderId string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderId]
	if !ok {
		return nil, &store.ProviderError{Provider: ProviderName, Op: "capture order", Err: fmt.Errorf("unexpected status 404: order %s not found", orderId)}
	}
	if order.Status != OrderStatusApproved {
		return nil, &store.ProviderError{Provider: ProviderName, Op: "capture order", Err: fmt.Errorf("unexpected status 422: order is %s", order.Status)}
	}

	order.Status = OrderStatusCompleted
	unit := &order.PurchaseUnits[0]
	unit.Payments.Captures = []Capture{{
		Id:     "CAP-" + uuid.New().String(),
		Status: CaptureStatusCompleted,
		Amount: unit.Amount,
	}}
	copied := *order
	return &copied, nil
}
