package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type rateRequest struct {
	From          *models.Address `json:"from,omitempty"`
	To            *models.Address `json:"to,omitempty"`
	FromAddressId string          `json:"from_address_id,omitempty"`
	ToAddressId   string          `json:"to_address_id,omitempty"`
	Parcel        models.Parcel   `json:"parcel"`
}

type fundingOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type addressRequest struct {
	Name        string `json:"name"`
	Company     string `json:"company"`
	Street1     string `json:"street1"`
	Street2     string `json:"street2"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	AddressType string `json:"address_type"`
	IsDefault   bool   `json:"is_default"`
}

func (a addressRequest) params() store.AddressParams {
	return store.AddressParams{
		Name:        a.Name,
		Company:     a.Company,
		Street1:     a.Street1,
		Street2:     a.Street2,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		Country:     a.Country,
		Phone:       a.Phone,
		Email:       a.Email,
		AddressType: a.AddressType,
		IsDefault:   a.IsDefault,
	}
}

type paymentMethodRequest struct {
	Provider      string `json:"provider"`
	ProviderToken string `json:"provider_token"`
	Brand         string `json:"brand"`
	Last4         string `json:"last4"`
	ExpMonth      int    `json:"exp_month"`
	ExpYear       int    `json:"exp_year"`
	IsDefault     bool   `json:"is_default"`
}

func (p paymentMethodRequest) params() store.PaymentMethodParams {
	return store.PaymentMethodParams{
		Provider:      p.Provider,
		ProviderToken: p.ProviderToken,
		Brand:         p.Brand,
		Last4:         p.Last4,
		ExpMonth:      p.ExpMonth,
		ExpYear:       p.ExpYear,
		IsDefault:     p.IsDefault,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return store.NewValidationError("body", "is required")
		}
		return store.NewValidationError("body", err.Error())
	}
	return nil
}

// pagination reads limit and offset query parameters. Absent values are zero
// and left to the service defaults.
func pagination(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	var limit, offset int
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, store.NewValidationError("limit", "must be an integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, store.NewValidationError("offset", "must be an integer")
		}
	}
	return limit, offset, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.api.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getRates(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userId := userIdFrom(r.Context())

	var (
		result *models.RateResult
		err    error
	)
	switch {
	case req.FromAddressId != "" || req.ToAddressId != "":
		if req.FromAddressId == "" || req.ToAddressId == "" {
			writeError(w, r, store.NewValidationError("address_id", "both from_address_id and to_address_id are required"))
			return
		}
		result, err = s.api.GetRatesFromAddresses(r.Context(), userId, req.FromAddressId, req.ToAddressId, req.Parcel)
	case req.From != nil && req.To != nil:
		result, err = s.api.GetRates(r.Context(), userId, models.ShipmentRequest{From: *req.From, To: *req.To, Parcel: req.Parcel})
	default:
		writeError(w, r, store.NewValidationError("address", "from and to are required"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) rateProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": s.api.RateProviders()})
}

func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.api.PurchaseShipment(r.Context(), userIdFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) listShipments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shipments, err := s.api.ListShipments(r.Context(), userIdFrom(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": shipments})
}

func (s *Server) getShipment(w http.ResponseWriter, r *http.Request) {
	shipment, err := s.api.GetShipment(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "shipmentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.api.GetBalance(r.Context(), userIdFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.api.GetTransactionHistory(r.Context(), userIdFrom(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": records})
}

func (s *Server) createFundingOrder(w http.ResponseWriter, r *http.Request) {
	var req fundingOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.api.CreateFundingOrder(r.Context(), userIdFrom(r.Context()), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) captureFundingOrder(w http.ResponseWriter, r *http.Request) {
	result, err := s.api.FundAccount(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.api.ListAddresses(r.Context(), userIdFrom(r.Context()), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"addresses": addresses})
}

func (s *Server) addAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	address, err := s.api.AddAddress(r.Context(), userIdFrom(r.Context()), req.params())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, address)
}

func (s *Server) defaultAddress(w http.ResponseWriter, r *http.Request) {
	address, err := s.api.GetDefaultAddress(r.Context(), userIdFrom(r.Context()), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (s *Server) getAddress(w http.ResponseWriter, r *http.Request) {
	address, err := s.api.GetAddress(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "addressId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (s *Server) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	address, err := s.api.SetDefaultAddress(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "addressId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteAddress(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "addressId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.api.ListPaymentMethods(r.Context(), userIdFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_methods": methods})
}

func (s *Server) addPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	method, err := s.api.AddPaymentMethod(r.Context(), userIdFrom(r.Context()), req.params())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, method)
}

func (s *Server) defaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	method, err := s.api.GetDefaultPaymentMethod(r.Context(), userIdFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, method)
}

func (s *Server) setDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	method, err := s.api.SetDefaultPaymentMethod(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "paymentMethodId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, method)
}

func (s *Server) deletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeletePaymentMethod(r.Context(), userIdFrom(r.Context()), chi.URLParam(r, "paymentMethodId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
