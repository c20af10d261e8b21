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

const shipEngineDefaultBaseURL = "https://api.shipengine.com"

var (
	shipEngineMassUnits = map[string]string{
		models.MassUnitPound:    "pound",
		models.MassUnitOunce:    "ounce",
		models.MassUnitKilogram: "kilogram",
		models.MassUnitGram:     "gram",
	}
	shipEngineDistanceUnits = map[string]string{
		models.DistanceUnitInch:       "inch",
		models.DistanceUnitCentimeter: "centimeter",
	}
)

type ShipEngineProvider struct {
	name       string
	baseURL    string
	apiKey     string
	carrierIds []string
	timeout    time.Duration
	client     *http.Client
}

func NewShipEngineProvider(cfg models.ProviderConfig, client *http.Client) *ShipEngineProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = shipEngineDefaultBaseURL
	}
	return &ShipEngineProvider{
		name:       cfg.Name,
		baseURL:    trimBaseURL(baseURL),
		apiKey:     cfg.APIKey,
		carrierIds: cfg.CarrierIds,
		timeout:    cfg.Timeout,
		client:     client,
	}
}

func (p *ShipEngineProvider) Name() string           { return p.name }
func (p *ShipEngineProvider) Timeout() time.Duration { return p.timeout }

type shipEngineAddress struct {
	Name          string `json:"name"`
	CompanyName   string `json:"company_name,omitempty"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	CityLocality  string `json:"city_locality"`
	StateProvince string `json:"state_province,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryCode   string `json:"country_code"`
	Phone         string `json:"phone,omitempty"`
}

type shipEngineWeight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type shipEngineDimensions struct {
	Unit   string  `json:"unit"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type shipEnginePackage struct {
	Weight     shipEngineWeight     `json:"weight"`
	Dimensions shipEngineDimensions `json:"dimensions"`
}

type shipEngineRatesRequest struct {
	RateOptions struct {
		CarrierIds []string `json:"carrier_ids"`
	} `json:"rate_options"`
	Shipment struct {
		ShipFrom shipEngineAddress   `json:"ship_from"`
		ShipTo   shipEngineAddress   `json:"ship_to"`
		Packages []shipEnginePackage `json:"packages"`
	} `json:"shipment"`
}

type shipEngineMoney struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type shipEngineRate struct {
	RateId              string          `json:"rate_id"`
	CarrierFriendlyName string          `json:"carrier_friendly_name"`
	ServiceCode         string          `json:"service_code"`
	ServiceType         string          `json:"service_type"`
	ShippingAmount      shipEngineMoney `json:"shipping_amount"`
	OtherAmount         shipEngineMoney `json:"other_amount"`
	DeliveryDays        *int            `json:"delivery_days"`
}

type shipEngineRatesResponse struct {
	RateResponse struct {
		Status string           `json:"status"`
		Rates  []shipEngineRate `json:"rates"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"rate_response"`
}

func toShipEngineAddress(a models.Address) shipEngineAddress {
	return shipEngineAddress{
		Name:          a.Name,
		CompanyName:   a.Company,
		AddressLine1:  a.Street1,
		AddressLine2:  a.Street2,
		CityLocality:  a.City,
		StateProvince: a.State,
		PostalCode:    a.PostalCode,
		CountryCode:   a.Country,
		Phone:         a.Phone,
	}
}

func (p *ShipEngineProvider) FetchRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error) {
	var body shipEngineRatesRequest
	body.RateOptions.CarrierIds = p.carrierIds
	if body.RateOptions.CarrierIds == nil {
		body.RateOptions.CarrierIds = []string{}
	}
	body.Shipment.ShipFrom = toShipEngineAddress(req.From)
	body.Shipment.ShipTo = toShipEngineAddress(req.To)
	body.Shipment.Packages = []shipEnginePackage{{
		Weight: shipEngineWeight{
			Value: req.Parcel.Weight.InexactFloat64(),
			Unit:  shipEngineMassUnits[req.Parcel.MassUnit],
		},
		Dimensions: shipEngineDimensions{
			Unit:   shipEngineDistanceUnits[req.Parcel.DistanceUnit],
			Length: req.Parcel.Length.InexactFloat64(),
			Width:  req.Parcel.Width.InexactFloat64(),
			Height: req.Parcel.Height.InexactFloat64(),
		},
	}}

	var resp shipEngineRatesResponse
	err := postJSON(ctx, p.client, p.baseURL+"/v1/rates", body, &resp, func(r *http.Request) {
		r.Header.Set("API-Key", p.apiKey)
	})
	if err != nil {
		return nil, &store.ProviderError{Provider: p.name, Op: "get rates", Err: err}
	}

	rr := resp.RateResponse
	if len(rr.Rates) == 0 && len(rr.Errors) > 0 {
		texts := make([]string, 0, len(rr.Errors))
		for _, e := range rr.Errors {
			texts = append(texts, e.Message)
		}
		return nil, &store.ProviderError{Provider: p.name, Op: "get rates", Err: fmt.Errorf("no rates: %s", strings.Join(texts, "; "))}
	}

	quotes := make([]models.RateQuote, 0, len(rr.Rates))
	for _, r := range rr.Rates {
		amount := r.ShippingAmount.Amount
		if strings.EqualFold(r.OtherAmount.Currency, r.ShippingAmount.Currency) {
			amount = amount.Add(r.OtherAmount.Amount)
		}
		q := models.RateQuote{
			Carrier:          r.CarrierFriendlyName,
			ServiceLevelCode: r.ServiceCode,
			ServiceLevelName: r.ServiceType,
			Amount:           amount,
			Currency:         r.ShippingAmount.Currency,
			ProviderRateId:   r.RateId,
		}
		if r.DeliveryDays != nil {
			q.EstimatedDays = *r.DeliveryDays
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
