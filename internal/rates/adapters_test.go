package rates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providerConfig(kind, baseURL string) models.ProviderConfig {
	return models.ProviderConfig{Name: kind, Kind: kind, Enabled: true, BaseURL: baseURL, APIKey: "secret", Timeout: time.Second}
}

func TestShippoProvider_FetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shipments/", r.URL.Path)
		assert.Equal(t, "ShippoToken secret", r.Header.Get("Authorization"))

		var body shippoShipmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "78701", body.AddressFrom.Zip)
		require.Len(t, body.Parcels, 1)
		assert.Equal(t, "2", body.Parcels[0].Weight)
		assert.Equal(t, "lb", body.Parcels[0].MassUnit)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object_id": "shp_1",
			"status": "SUCCESS",
			"rates": [
				{"object_id": "rate_1", "amount": "7.45", "currency": "USD", "provider": "USPS",
				 "estimated_days": 3, "servicelevel": {"name": "Priority Mail", "token": "usps_priority"}},
				{"object_id": "rate_2", "amount": "12.10", "currency": "USD", "provider": "UPS",
				 "servicelevel": {"name": "Ground", "token": "ups_ground"}}
			]
		}`))
	}))
	defer srv.Close()

	p := NewShippoProvider(providerConfig(models.ProviderKindShippo, srv.URL+"/"), srv.Client())
	got, err := p.FetchRates(context.Background(), shipmentRequest())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "USPS", got[0].Carrier)
	assert.Equal(t, "usps_priority", got[0].ServiceLevelCode)
	assert.Equal(t, "Priority Mail", got[0].ServiceLevelName)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("7.45")))
	assert.Equal(t, 3, got[0].EstimatedDays)
	assert.Equal(t, "rate_1", got[0].ProviderRateId)
	assert.Equal(t, 0, got[1].EstimatedDays)
}

func TestShippoProvider_MessagesWithoutRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates": [], "messages": [{"source": "USPS", "text": "address not found"}]}`))
	}))
	defer srv.Close()

	p := NewShippoProvider(providerConfig(models.ProviderKindShippo, srv.URL), srv.Client())
	_, err := p.FetchRates(context.Background(), shipmentRequest())
	require.ErrorIs(t, err, store.ErrProviderFailure)
	assert.Contains(t, err.Error(), "USPS address not found")
}

func TestEasyPostProvider_FetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/shipments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "secret", user)
		assert.Empty(t, pass)

		var body easyPostShipmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// EasyPost wants ounces.
		assert.InDelta(t, 32.0, body.Shipment.Parcel.Weight, 0.001)
		assert.InDelta(t, 10.0, body.Shipment.Parcel.Length, 0.001)

		_, _ = w.Write([]byte(`{
			"id": "shp_ep",
			"rates": [
				{"id": "rate_ep1", "carrier": "USPS", "service": "Priority", "rate": "8.15", "currency": "USD", "delivery_days": 2}
			]
		}`))
	}))
	defer srv.Close()

	p := NewEasyPostProvider(providerConfig(models.ProviderKindEasyPost, srv.URL), srv.Client())
	got, err := p.FetchRates(context.Background(), shipmentRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "shp_ep|rate_ep1", got[0].ProviderRateId)
	assert.Equal(t, "Priority", got[0].ServiceLevelName)
	assert.Equal(t, 2, got[0].EstimatedDays)
}

func TestShipEngineProvider_FetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rates", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("API-Key"))

		var body shipEngineRatesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"se-1"}, body.RateOptions.CarrierIds)
		require.Len(t, body.Shipment.Packages, 1)
		assert.Equal(t, "pound", body.Shipment.Packages[0].Weight.Unit)
		assert.Equal(t, "inch", body.Shipment.Packages[0].Dimensions.Unit)

		_, _ = w.Write([]byte(`{
			"rate_response": {
				"status": "completed",
				"rates": [
					{"rate_id": "se-rate-1", "carrier_friendly_name": "FedEx", "service_code": "fedex_ground",
					 "service_type": "FedEx Ground",
					 "shipping_amount": {"currency": "usd", "amount": 10.5},
					 "other_amount": {"currency": "usd", "amount": 1.25},
					 "delivery_days": 4}
				]
			}
		}`))
	}))
	defer srv.Close()

	cfg := providerConfig(models.ProviderKindShipEngine, srv.URL)
	cfg.CarrierIds = []string{"se-1"}
	p := NewShipEngineProvider(cfg, srv.Client())
	got, err := p.FetchRates(context.Background(), shipmentRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("11.75")))
	assert.Equal(t, "usd", got[0].Currency)
	assert.Equal(t, "FedEx", got[0].Carrier)
	assert.Equal(t, 4, got[0].EstimatedDays)
}

func TestProvider_HTTPFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail":"boom"}`, wantMsg: "unexpected status 500"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `denied`, wantMsg: "unexpected status 401: denied"},
		{name: "malformed body", status: http.StatusOK, body: `{"rates": [`, wantMsg: "malformed response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewShippoProvider(providerConfig(models.ProviderKindShippo, srv.URL), srv.Client())
			_, err := p.FetchRates(context.Background(), shipmentRequest())

			var pe *store.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, models.ProviderKindShippo, pe.Provider)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestProvider_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	p := NewEasyPostProvider(providerConfig(models.ProviderKindEasyPost, srv.URL), srv.Client())
	_, err := p.FetchRates(ctx, shipmentRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
