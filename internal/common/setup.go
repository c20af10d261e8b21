package common

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/jfibra/alien-shippo-sub001/internal/alert"
	"github.com/jfibra/alien-shippo-sub001/internal/api"
	"github.com/jfibra/alien-shippo-sub001/internal/database"
	"github.com/jfibra/alien-shippo-sub001/internal/formance"
	"github.com/jfibra/alien-shippo-sub001/internal/funding"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/paypal"
	"github.com/jfibra/alien-shippo-sub001/internal/purchase"
	"github.com/jfibra/alien-shippo-sub001/internal/quotes"
	"github.com/jfibra/alien-shippo-sub001/internal/rates"
	"github.com/jfibra/alien-shippo-sub001/internal/reconciler"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService    *database.Service
	Ledger       *ledger.Service
	Mirror       *formance.Mirror
	Quotes       quotes.Store
	Aggregator   *rates.Aggregator
	Notifier     alert.Notifier
	Orchestrator *purchase.Orchestrator
	Funding      *funding.Service
	Api          *api.LedgerService

	closers []func() error
}

func InitializeLogger() (*zap.Logger, func()) {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the store, ledger, rate aggregation, purchase,
// funding and alerting components from cfg.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Services{DbService: dbService}

	var hooks []ledger.Hook
	if cfg.Formance.Enabled() {
		mirror, err := formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			// The mirror is optional; the local ledger stays authoritative.
			zap.L().Warn("Formance mirror unavailable, continuing without it", zap.Error(err))
		} else {
			s.Mirror = mirror
			hooks = append(hooks, mirror)
		}
	}
	s.Ledger = ledger.NewService(dbService, cfg.Ledger, hooks...)

	s.Quotes, err = quotes.New(ctx, cfg.QuoteStore)
	if err != nil {
		s.Close()
		return nil, err
	}
	if closer, ok := s.Quotes.(interface{ Close() error }); ok {
		s.closers = append(s.closers, closer.Close)
	}

	httpClient, err := NewHttpClient()
	if err != nil {
		s.Close()
		return nil, err
	}

	providerConfigs, err := LoadProviderConfig(cfg.Rates.ProvidersFile)
	if errors.Is(err, fs.ErrNotExist) {
		providerConfigs, err = MockProviderConfig(), nil
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	providers, err := rates.BuildProviders(providerConfigs, cfg.Rates.ProviderTimeout, httpClient)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Aggregator = rates.NewAggregator(providers, s.Quotes, s.Ledger.Currency(), cfg.Rates)
	zap.L().Info("Rate providers configured", zap.Strings("providers", s.Aggregator.Providers()))

	notifiers := alert.Multi{alert.LogNotifier{}}
	if cfg.Alerts.AMQPURL != "" {
		amqpNotifier, err := alert.DialAMQP(cfg.Alerts.AMQPURL, cfg.Alerts.Exchange, cfg.Alerts.RoutingKey)
		if err != nil {
			s.Close()
			return nil, err
		}
		notifiers = append(notifiers, amqpNotifier)
		s.closers = append(s.closers, amqpNotifier.Close)
	}
	s.Notifier = notifiers

	var gateway paypal.Gateway
	if cfg.PayPal.Mock {
		zap.L().Warn("Using in-process PayPal gateway; no real payments are captured")
		gateway = paypal.NewMockGateway()
	} else {
		gateway = paypal.NewClient(cfg.PayPal, httpClient)
	}
	s.Funding = funding.NewService(s.Ledger, gateway, s.Notifier)

	s.Orchestrator = purchase.NewOrchestrator(s.Ledger, dbService, dbService, s.Quotes, s.Notifier, cfg.Purchase)

	s.Api = api.NewLedgerService(api.Deps{
		Store:     dbService,
		Ledger:    s.Ledger,
		Rates:     s.Aggregator,
		Purchases: s.Orchestrator,
		Funding:   s.Funding,
	})

	return s, nil
}

// NewReconciler builds the pending-debit sweep over the initialized services.
func (cs *Services) NewReconciler(cfg models.ReconcilerConfig) *reconciler.Reconciler {
	return reconciler.New(cs.Ledger, cs.DbService, cs.Orchestrator, cs.Notifier, cfg)
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.Ledger != nil {
		cs.Ledger.Close()
	}
	for i := len(cs.closers) - 1; i >= 0; i-- {
		if err := cs.closers[i](); err != nil {
			zap.L().Warn("Failed to close service", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
