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

const shippoDefaultBaseURL = "https://api.goshippo.com"

type ShippoProvider struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewShippoProvider(cfg models.ProviderConfig, client *http.Client) *ShippoProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = shippoDefaultBaseURL
	}
	return &ShippoProvider{
		name:    cfg.Name,
		baseURL: trimBaseURL(baseURL),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  client,
	}
}

func (p *ShippoProvider) Name() string           { return p.name }
func (p *ShippoProvider) Timeout() time.Duration { return p.timeout }

type shippoAddress struct {
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

type shippoParcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type shippoShipmentRequest struct {
	AddressFrom shippoAddress  `json:"address_from"`
	AddressTo   shippoAddress  `json:"address_to"`
	Parcels     []shippoParcel `json:"parcels"`
	Async       bool           `json:"async"`
}

type shippoRate struct {
	ObjectId      string          `json:"object_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Provider      string          `json:"provider"`
	EstimatedDays *int            `json:"estimated_days"`
	ServiceLevel  struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	} `json:"servicelevel"`
}

type shippoShipmentResponse struct {
	ObjectId string       `json:"object_id"`
	Status   string       `json:"status"`
	Rates    []shippoRate `json:"rates"`
	Messages []struct {
		Source string `json:"source"`
		Text   string `json:"text"`
	} `json:"messages"`
}

func toShippoAddress(a models.Address) shippoAddress {
	return shippoAddress{
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

func (p *ShippoProvider) FetchRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error) {
	body := shippoShipmentRequest{
		AddressFrom: toShippoAddress(req.From),
		AddressTo:   toShippoAddress(req.To),
		Parcels: []shippoParcel{{
			Length:       req.Parcel.Length.String(),
			Width:        req.Parcel.Width.String(),
			Height:       req.Parcel.Height.String(),
			DistanceUnit: req.Parcel.DistanceUnit,
			Weight:       req.Parcel.Weight.String(),
			MassUnit:     req.Parcel.MassUnit,
		}},
		Async: false,
	}

	var resp shippoShipmentResponse
	err := postJSON(ctx, p.client, p.baseURL+"/shipments/", body, &resp, func(r *http.Request) {
		r.Header.Set("Authorization", "ShippoToken "+p.apiKey)
	})
	if err != nil {
		return nil, &store.ProviderError{Provider: p.name, Op: "create shipment", Err: err}
	}

	if len(resp.Rates) == 0 && len(resp.Messages) > 0 {
		texts := make([]string, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			texts = append(texts, strings.TrimSpace(m.Source+" "+m.Text))
		}
		return nil, &store.ProviderError{Provider: p.name, Op: "create shipment", Err: fmt.Errorf("no rates: %s", strings.Join(texts, "; "))}
	}

	quotes := make([]models.RateQuote, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		q := models.RateQuote{
			Carrier:          r.Provider,
			ServiceLevelCode: r.ServiceLevel.Token,
			ServiceLevelName: r.ServiceLevel.Name,
			Amount:           r.Amount,
			Currency:         r.Currency,
			ProviderRateId:   r.ObjectId,
		}
		if r.EstimatedDays != nil {
			q.EstimatedDays = *r.EstimatedDays
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
