package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jfibra/alien-shippo-sub001/internal/api"
	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes the ledger service over HTTP.
type Server struct {
	api    *api.LedgerService
	cfg    models.ServerConfig
	router chi.Router
	http   *http.Server
}

func New(svc *api.LedgerService, cfg models.ServerConfig) *Server {
	s := &Server{api: svc, cfg: cfg}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(withUser)

		r.Post("/rates", s.getRates)
		r.Get("/rates/providers", s.rateProviders)

		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", s.purchase)
			r.Get("/", s.listShipments)
			r.Get("/{shipmentId}", s.getShipment)
		})

		r.Get("/balance", s.balance)
		r.Get("/transactions", s.transactions)

		r.Route("/funding/orders", func(r chi.Router) {
			r.Post("/", s.createFundingOrder)
			r.Post("/{orderId}/capture", s.captureFundingOrder)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", s.listAddresses)
			r.Post("/", s.addAddress)
			r.Get("/default", s.defaultAddress)
			r.Get("/{addressId}", s.getAddress)
			r.Put("/{addressId}/default", s.setDefaultAddress)
			r.Delete("/{addressId}", s.deleteAddress)
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", s.listPaymentMethods)
			r.Post("/", s.addPaymentMethod)
			r.Get("/default", s.defaultPaymentMethod)
			r.Put("/{paymentMethodId}/default", s.setDefaultPaymentMethod)
			r.Delete("/{paymentMethodId}", s.deletePaymentMethod)
		})
	})

	return r
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down HTTP server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
