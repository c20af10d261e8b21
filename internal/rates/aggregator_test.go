package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/quotes"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name    string
	timeout time.Duration
	delay   time.Duration
	quotes  []models.RateQuote
	err     error
}

func (s *stubProvider) Name() string           { return s.name }
func (s *stubProvider) Timeout() time.Duration { return s.timeout }

func (s *stubProvider) FetchRates(ctx context.Context, _ models.ShipmentRequest) ([]models.RateQuote, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, &store.ProviderError{Provider: s.name, Op: "get rates", Err: ctx.Err()}
		}
	}
	return s.quotes, s.err
}

func quote(carrier, amount, currency string) models.RateQuote {
	return models.RateQuote{
		Carrier:          carrier,
		ServiceLevelCode: "std",
		ServiceLevelName: "Standard",
		Amount:           decimal.RequireFromString(amount),
		Currency:         currency,
	}
}

func shipmentRequest() models.ShipmentRequest {
	return models.ShipmentRequest{
		From: models.Address{Name: "Warehouse", Street1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
		To:   models.Address{Name: "Jane", Street1: "2 Elm St", City: "Denver", State: "CO", PostalCode: "80202", Country: "US"},
		Parcel: models.Parcel{
			Length: decimal.NewFromInt(10), Width: decimal.NewFromInt(8), Height: decimal.NewFromInt(4),
			DistanceUnit: "in", Weight: decimal.NewFromInt(2), MassUnit: "lb",
		},
	}
}

func newTestAggregator(providers ...Provider) (*Aggregator, *quotes.MemoryStore) {
	qs := quotes.NewMemoryStore()
	agg := NewAggregator(providers, qs, "USD", models.RatesConfig{
		AggregateTimeout: 500 * time.Millisecond,
		QuoteTTL:         5 * time.Minute,
	})
	return agg, qs
}

func TestGetRates_MergesAndSorts(t *testing.T) {
	agg, qs := newTestAggregator(
		&stubProvider{name: "b-provider", timeout: time.Second, quotes: []models.RateQuote{quote("UPS", "9.50", "USD"), quote("UPS", "7.001", "usd")}},
		&stubProvider{name: "a-provider", timeout: time.Second, quotes: []models.RateQuote{quote("USPS", "7.01", "USD")}},
	)

	result, err := agg.GetRates(context.Background(), "alice", shipmentRequest())
	require.NoError(t, err)
	require.Len(t, result.Quotes, 3)
	assert.Empty(t, result.Warnings)

	// 7.001 rounds up to 7.01 and ties are broken by provider name.
	assert.Equal(t, "a-provider", result.Quotes[0].Provider)
	assert.Equal(t, "b-provider", result.Quotes[1].Provider)
	assert.Equal(t, "7.01", result.Quotes[1].Amount.StringFixed(2))
	assert.Equal(t, "9.50", result.Quotes[2].Amount.StringFixed(2))

	for _, q := range result.Quotes {
		assert.NotEmpty(t, q.QuoteId)
		assert.Equal(t, "alice", q.UserId)
		assert.Equal(t, "USD", q.Currency)
		stored, err := qs.Get(context.Background(), "alice", q.QuoteId)
		require.NoError(t, err)
		assert.True(t, stored.Amount.Equal(q.Amount))
	}
}

func TestGetRates_PartialProviderTimeout(t *testing.T) {
	agg, _ := newTestAggregator(
		&stubProvider{name: "fast", timeout: time.Second, quotes: []models.RateQuote{quote("USPS", "5.00", "USD")}},
		&stubProvider{name: "slow", timeout: 20 * time.Millisecond, delay: time.Second},
	)

	start := time.Now()
	result, err := agg.GetRates(context.Background(), "alice", shipmentRequest())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	require.Len(t, result.Quotes, 1)
	assert.Equal(t, "fast", result.Quotes[0].Provider)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "slow", result.Warnings[0].Provider)
	assert.Equal(t, "timed out", result.Warnings[0].Message)
}

func TestGetRates_AbandonsProvidersAtAggregateDeadline(t *testing.T) {
	blocking := &blockingProvider{name: "stuck", release: make(chan struct{})}
	defer close(blocking.release)

	agg, _ := newTestAggregator(
		&stubProvider{name: "fast", timeout: time.Second, quotes: []models.RateQuote{quote("USPS", "5.00", "USD")}},
		blocking,
	)
	agg.overallTimeout = 50 * time.Millisecond

	result, err := agg.GetRates(context.Background(), "alice", shipmentRequest())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.ProviderWarning{Provider: "stuck", Message: "timed out"}, result.Warnings[0])
}

// blockingProvider ignores its context until released.
type blockingProvider struct {
	name    string
	release chan struct{}
}

func (b *blockingProvider) Name() string           { return b.name }
func (b *blockingProvider) Timeout() time.Duration { return time.Hour }

func (b *blockingProvider) FetchRates(context.Context, models.ShipmentRequest) ([]models.RateQuote, error) {
	<-b.release
	return nil, nil
}

func TestGetRates_AllProvidersFail(t *testing.T) {
	agg, _ := newTestAggregator(
		&stubProvider{name: "shippo", timeout: time.Second, err: &store.ProviderError{Provider: "shippo", Op: "create shipment", Err: errors.New("unexpected status 500: boom")}},
		&stubProvider{name: "easypost", timeout: 10 * time.Millisecond, delay: time.Second},
	)

	_, err := agg.GetRates(context.Background(), "alice", shipmentRequest())
	require.ErrorIs(t, err, store.ErrNoRates)
	assert.Contains(t, err.Error(), "easypost: timed out")
	assert.Contains(t, err.Error(), "shippo: unexpected status 500: boom")
}

func TestGetRates_DropsForeignCurrencyAndNonPositive(t *testing.T) {
	agg, _ := newTestAggregator(
		&stubProvider{name: "mixed", timeout: time.Second, quotes: []models.RateQuote{
			quote("DHL", "12.00", "EUR"),
			quote("DHL", "0", "USD"),
			quote("DHL", "11.00", "USD"),
		}},
	)

	result, err := agg.GetRates(context.Background(), "alice", shipmentRequest())
	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0].Message, "EUR")
	assert.Contains(t, result.Warnings[1].Message, "non-positive")
}

func TestGetRates_ValidationFailsBeforeFanOut(t *testing.T) {
	called := false
	agg, _ := newTestAggregator(&funcProvider{fn: func() { called = true }})

	req := shipmentRequest()
	req.Parcel.Weight = decimal.Zero
	_, err := agg.GetRates(context.Background(), "alice", req)

	var ve *store.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "parcel.weight", ve.Field)
	assert.False(t, called)
}

type funcProvider struct{ fn func() }

func (f *funcProvider) Name() string           { return "func" }
func (f *funcProvider) Timeout() time.Duration { return time.Second }

func (f *funcProvider) FetchRates(context.Context, models.ShipmentRequest) ([]models.RateQuote, error) {
	f.fn()
	return nil, nil
}

func TestGetRates_RecoversProviderPanic(t *testing.T) {
	agg, _ := newTestAggregator(
		&funcProvider{fn: func() { panic("bad payload") }},
		&stubProvider{name: "ok", timeout: time.Second, quotes: []models.RateQuote{quote("USPS", "4.00", "USD")}},
	)

	result, err := agg.GetRates(context.Background(), "alice", shipmentRequest())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "panicked")
}

func TestBuildProviders(t *testing.T) {
	providers, err := BuildProviders([]models.ProviderConfig{
		{Name: "shippo", Kind: models.ProviderKindShippo, Enabled: true, Mock: true},
		{Name: "easypost", Kind: models.ProviderKindEasyPost, Enabled: false},
		{Name: "shipengine", Kind: models.ProviderKindShipEngine, Enabled: true, APIKey: "key", Timeout: 3 * time.Second},
	}, 8*time.Second, nil)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, 8*time.Second, providers[0].Timeout())
	assert.Equal(t, 3*time.Second, providers[1].Timeout())

	_, err = BuildProviders([]models.ProviderConfig{{Name: "x", Kind: models.ProviderKindShippo, Enabled: true, APIKeyEnv: "SHIPPO_API_KEY"}}, time.Second, nil)
	assert.ErrorContains(t, err, "SHIPPO_API_KEY")
}

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProvider(models.ProviderConfig{Name: "shippo", Kind: models.ProviderKindShippo})
	first, err := p.FetchRates(context.Background(), shipmentRequest())
	require.NoError(t, err)
	second, err := p.FetchRates(context.Background(), shipmentRequest())
	require.NoError(t, err)

	require.Len(t, first, 3)
	for i := range first {
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
	// 2 lb = 32 oz at 0.05 per ounce on top of the 5.25 base.
	assert.Equal(t, "6.85", first[0].Amount.StringFixed(2))
	assert.Equal(t, "USPS", first[0].Carrier)
}
