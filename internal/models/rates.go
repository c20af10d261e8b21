package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Parcel units
const (
	DistanceUnitInch       = "in"
	DistanceUnitCentimeter = "cm"
	MassUnitPound          = "lb"
	MassUnitOunce          = "oz"
	MassUnitKilogram       = "kg"
	MassUnitGram           = "g"
)

// Parcel describes the package dimensions and weight in declared units
type Parcel struct {
	Length       decimal.Decimal `json:"length"`
	Width        decimal.Decimal `json:"width"`
	Height       decimal.Decimal `json:"height"`
	DistanceUnit string          `json:"distance_unit"`
	Weight       decimal.Decimal `json:"weight"`
	MassUnit     string          `json:"mass_unit"`
}

// ShipmentRequest is the normalized input to rate aggregation
type ShipmentRequest struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Parcel Parcel  `json:"parcel"`
}

// RateQuote is one normalized offer from a rate provider
type RateQuote struct {
	QuoteId          string          `json:"quote_id"`
	UserId           string          `json:"user_id"`
	Provider         string          `json:"provider"`
	Carrier          string          `json:"carrier"`
	ServiceLevelCode string          `json:"service_level_code"`
	ServiceLevelName string          `json:"service_level_name"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	EstimatedDays    int             `json:"estimated_days,omitempty"`
	ProviderRateId   string          `json:"provider_rate_id"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
}

// Expired reports whether the quote can no longer be purchased.
func (q RateQuote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// ProviderWarning describes a provider that contributed no usable quotes
type ProviderWarning struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// RateResult is the merged output of one aggregation call
type RateResult struct {
	Quotes   []RateQuote       `json:"quotes"`
	Warnings []ProviderWarning `json:"warnings"`
}
