package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"
	"github.com/jfibra/alien-shippo-sub001/internal/observability"
	"github.com/jfibra/alien-shippo-sub001/internal/server"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, cfg.Telemetry)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			zap.L().Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	zap.L().Info("Starting shipping ledger server",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("currency", cfg.Ledger.Currency),
		zap.String("quote_store", cfg.QuoteStore.Backend),
		zap.Bool("paypal_mock", cfg.PayPal.Mock),
		zap.Bool("formance_mirror", cfg.Formance.Enabled()))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	rec := services.NewReconciler(cfg.Reconciler)
	rec.Start(ctx)
	defer rec.Stop()

	srv := server.New(services.Api, cfg.Server)
	if err := srv.Run(ctx); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped")
}
