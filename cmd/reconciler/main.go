package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"

	"go.uber.org/zap"
)

func main() {
	onceFlag := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	rec := services.NewReconciler(cfg.Reconciler)

	if *onceFlag {
		summary, err := rec.Sweep(ctx)
		if err != nil {
			zap.L().Fatal("Reconciliation sweep failed", zap.Error(err))
		}
		common.PrintHeader("RECONCILIATION", common.DefaultWidth)
		fmt.Printf("Scanned:   %d\n", summary.Scanned)
		fmt.Printf("Linked:    %d\n", summary.Linked)
		fmt.Printf("Refunded:  %d\n", summary.Refunded)
		fmt.Printf("Skipped:   %d\n", summary.Skipped)
		fmt.Printf("Failed:    %d\n", summary.Failed)
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	rec.Start(ctx)
	zap.L().Info("Press Ctrl+C to stop")
	<-ctx.Done()

	zap.L().Info("Shutdown signal received")
	rec.Stop()
}
