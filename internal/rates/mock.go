package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
)

type mockService struct {
	code string
	name string
	base string
	days int
}

var mockCarriers = map[string]string{
	models.ProviderKindShippo:     "USPS",
	models.ProviderKindEasyPost:   "UPS",
	models.ProviderKindShipEngine: "FedEx",
}

var mockServices = []mockService{
	{"ground", "Ground", "5.25", 5},
	{"priority", "Priority", "8.40", 2},
	{"express", "Express", "24.10", 1},
}

var mockPerOunce = decimal.RequireFromString("0.05")

// MockProvider returns deterministic quotes without any network access.
// Amounts grow with the parcel weight.
type MockProvider struct {
	name    string
	carrier string
	timeout time.Duration
}

func NewMockProvider(cfg models.ProviderConfig) *MockProvider {
	carrier, ok := mockCarriers[cfg.Kind]
	if !ok {
		carrier = "Mock"
	}
	return &MockProvider{name: cfg.Name, carrier: carrier, timeout: cfg.Timeout}
}

func (p *MockProvider) Name() string           { return p.name }
func (p *MockProvider) Timeout() time.Duration { return p.timeout }

func (p *MockProvider) FetchRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	weightCharge := toOunces(req.Parcel.Weight, req.Parcel.MassUnit).Mul(mockPerOunce)

	quotes := make([]models.RateQuote, 0, len(mockServices))
	for _, s := range mockServices {
		quotes = append(quotes, models.RateQuote{
			Carrier:          p.carrier,
			ServiceLevelCode: s.code,
			ServiceLevelName: s.name,
			Amount:           decimal.RequireFromString(s.base).Add(weightCharge),
			Currency:         models.DefaultCurrency,
			EstimatedDays:    s.days,
			ProviderRateId:   fmt.Sprintf("mock_%s_%s", p.name, s.code),
		})
	}
	return quotes, nil
}
