package rates

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
)

const easyPostDefaultBaseURL = "https://api.easypost.com"

// EasyPostProvider quotes in inches and ounces. The rate linkage is
// "<shipment id>|<rate id>" since buying needs both.
type EasyPostProvider struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewEasyPostProvider(cfg models.ProviderConfig, client *http.Client) *EasyPostProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = easyPostDefaultBaseURL
	}
	return &EasyPostProvider{
		name:    cfg.Name,
		baseURL: trimBaseURL(baseURL),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  client,
	}
}

func (p *EasyPostProvider) Name() string           { return p.name }
func (p *EasyPostProvider) Timeout() time.Duration { return p.timeout }

type easyPostAddress struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type easyPostParcel struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

type easyPostShipmentRequest struct {
	Shipment struct {
		FromAddress easyPostAddress `json:"from_address"`
		ToAddress   easyPostAddress `json:"to_address"`
		Parcel      easyPostParcel  `json:"parcel"`
	} `json:"shipment"`
}

type easyPostRate struct {
	Id           string          `json:"id"`
	ShipmentId   string          `json:"shipment_id"`
	Carrier      string          `json:"carrier"`
	Service      string          `json:"service"`
	Rate         decimal.Decimal `json:"rate"`
	Currency     string          `json:"currency"`
	DeliveryDays *int            `json:"delivery_days"`
}

type easyPostShipmentResponse struct {
	Id       string         `json:"id"`
	Rates    []easyPostRate `json:"rates"`
	Messages []struct {
		Carrier string `json:"carrier"`
		Message string `json:"message"`
	} `json:"messages"`
}

func toEasyPostAddress(a models.Address) easyPostAddress {
	return easyPostAddress{
		Name:    a.Name,
		Company: a.Company,
		Street1: a.Street1,
		Street2: a.Street2,
		City:    a.City,
		State:   a.State,
		Zip:     a.PostalCode,
		Country: a.Country,
		Phone:   a.Phone,
		Email:   a.Email,
	}
}

func (p *EasyPostProvider) FetchRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error) {
	var body easyPostShipmentRequest
	body.Shipment.FromAddress = toEasyPostAddress(req.From)
	body.Shipment.ToAddress = toEasyPostAddress(req.To)
	body.Shipment.Parcel = easyPostParcel{
		Length: toInches(req.Parcel.Length, req.Parcel.DistanceUnit).InexactFloat64(),
		Width:  toInches(req.Parcel.Width, req.Parcel.DistanceUnit).InexactFloat64(),
		Height: toInches(req.Parcel.Height, req.Parcel.DistanceUnit).InexactFloat64(),
		Weight: toOunces(req.Parcel.Weight, req.Parcel.MassUnit).InexactFloat64(),
	}

	var resp easyPostShipmentResponse
	err := postJSON(ctx, p.client, p.baseURL+"/v2/shipments", body, &resp, func(r *http.Request) {
		r.SetBasicAuth(p.apiKey, "")
	})
	if err != nil {
		return nil, &store.ProviderError{Provider: p.name, Op: "create shipment", Err: err}
	}

	if len(resp.Rates) == 0 && len(resp.Messages) > 0 {
		texts := make([]string, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			texts = append(texts, strings.TrimSpace(m.Carrier+" "+m.Message))
		}
		return nil, &store.ProviderError{Provider: p.name, Op: "create shipment", Err: fmt.Errorf("no rates: %s", strings.Join(texts, "; "))}
	}

	quotes := make([]models.RateQuote, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		shipmentId := r.ShipmentId
		if shipmentId == "" {
			shipmentId = resp.Id
		}
		q := models.RateQuote{
			Carrier:          r.Carrier,
			ServiceLevelCode: r.Service,
			ServiceLevelName: r.Service,
			Amount:           r.Rate,
			Currency:         r.Currency,
			ProviderRateId:   shipmentId + "|" + r.Id,
		}
		if r.DeliveryDays != nil {
			q.EstimatedDays = *r.DeliveryDays
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
