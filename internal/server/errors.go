package server

import (
	"errors"
	"net/http"

	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps the store error taxonomy to an HTTP status and a stable
// error code. Order matters: a consistency failure may wrap a transient one.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrConsistency):
		return http.StatusInternalServerError, "consistency_failure"
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, store.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrQuoteExpired):
		return http.StatusGone, "quote_expired"
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrDuplicateTransaction):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, store.ErrNoRates):
		return http.StatusBadGateway, "no_rates"
	case errors.Is(err, store.ErrProviderFailure):
		return http.StatusBadGateway, "provider_failure"
	case errors.Is(err, store.ErrTransientStore):
		return http.StatusServiceUnavailable, "temporarily_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Error: code, Message: err.Error()}

	var ve *store.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
		resp.Message = ve.Reason
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		if status == http.StatusInternalServerError && code == "internal_error" {
			resp.Message = http.StatusText(status)
		}
	}

	writeJSON(w, status, resp)
}
