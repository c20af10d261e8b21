package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/alert"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultInterval    = time.Minute
	defaultGracePeriod = 5 * time.Minute
	defaultBatchSize   = 100
)

type Ledger interface {
	ListPendingDebits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
	LinkTransaction(ctx context.Context, userId, reference, shipmentId string) error
}

type Shipments interface {
	GetShipment(ctx context.Context, userId, shipmentId string) (*models.Shipment, error)
	ClearReconciliationFlag(ctx context.Context, userId, shipmentId string) error
}

// Refunder reverses a label debit whose shipment was never recorded.
type Refunder interface {
	RefundDebit(ctx context.Context, userId, shipmentId string, amount decimal.Decimal, currency string) error
}

// Summary counts the outcome of one sweep.
type Summary struct {
	Scanned  int
	Linked   int
	Refunded int
	Skipped  int
	Failed   int
}

// Reconciler finishes label debits left pending by an interrupted purchase.
// A debit with a recorded shipment is linked to it; one without is refunded.
type Reconciler struct {
	ledger    Ledger
	shipments Shipments
	refunder  Refunder
	notifier  alert.Notifier

	interval    time.Duration
	gracePeriod time.Duration
	batchSize   int
	now         func() time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

func New(l Ledger, shipments Shipments, refunder Refunder, notifier alert.Notifier, cfg models.ReconcilerConfig) *Reconciler {
	if notifier == nil {
		notifier = alert.LogNotifier{}
	}
	r := &Reconciler{
		ledger:      l,
		shipments:   shipments,
		refunder:    refunder,
		notifier:    notifier,
		interval:    cfg.Interval,
		gracePeriod: cfg.GracePeriod,
		batchSize:   cfg.BatchSize,
		now:         time.Now,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	if r.interval <= 0 {
		r.interval = defaultInterval
	}
	if r.gracePeriod <= 0 {
		r.gracePeriod = defaultGracePeriod
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	return r
}

// Start runs one sweep immediately and then one per interval until Stop is
// called or ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	zap.L().Info("Starting reconciler",
		zap.Duration("interval", r.interval),
		zap.Duration("grace_period", r.gracePeriod),
		zap.Int("batch_size", r.batchSize))
	go r.pollLoop(ctx)
}

func (r *Reconciler) Stop() {
	zap.L().Info("Stopping reconciler")
	close(r.stopChan)
	<-r.doneChan
	zap.L().Info("Reconciler stopped")
}

func (r *Reconciler) pollLoop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweepAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			r.sweepAndLog(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) sweepAndLog(ctx context.Context) {
	summary, err := r.Sweep(ctx)
	if err != nil {
		zap.L().Error("Reconciliation sweep failed", zap.Error(err))
		return
	}
	if summary.Scanned == 0 {
		zap.L().Debug("No pending debits to reconcile")
		return
	}
	zap.L().Info("Reconciliation sweep complete",
		zap.Int("scanned", summary.Scanned),
		zap.Int("linked", summary.Linked),
		zap.Int("refunded", summary.Refunded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
}

// Sweep processes one batch of pending label debits older than the grace
// period. Per-debit failures are counted and alerted, not returned.
func (r *Reconciler) Sweep(ctx context.Context) (Summary, error) {
	var summary Summary

	cutoff := r.now().UTC().Add(-r.gracePeriod)
	pending, err := r.ledger.ListPendingDebits(ctx, cutoff, r.batchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to list pending debits: %w", err)
	}

	for _, tx := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Scanned++

		shipmentId, err := ledger.ShipmentIdFromReference(tx.Reference)
		if err != nil {
			zap.L().Warn("Skipping pending debit without a label reference",
				zap.String("transaction_id", tx.Id),
				zap.String("reference", tx.Reference))
			summary.Skipped++
			continue
		}

		outcome, err := r.reconcile(ctx, tx, shipmentId)
		switch {
		case err != nil:
			summary.Failed++
			zap.L().Error("Failed to reconcile pending debit",
				zap.String("user_id", tx.UserId),
				zap.String("reference", tx.Reference),
				zap.Error(err))
		case outcome == outcomeLinked:
			summary.Linked++
		case outcome == outcomeRefunded:
			summary.Refunded++
		}
	}

	return summary, nil
}

type outcome int

const (
	outcomeLinked outcome = iota + 1
	outcomeRefunded
)

func (r *Reconciler) reconcile(ctx context.Context, tx models.Transaction, shipmentId string) (outcome, error) {
	_, err := r.shipments.GetShipment(ctx, tx.UserId, shipmentId)
	switch {
	case err == nil:
		if err := r.ledger.LinkTransaction(ctx, tx.UserId, tx.Reference, shipmentId); err != nil {
			r.raise(ctx, tx, "could not link pending debit to its shipment", err)
			return 0, err
		}
		if err := r.shipments.ClearReconciliationFlag(ctx, tx.UserId, shipmentId); err != nil {
			zap.L().Warn("Linked debit but could not clear reconciliation flag",
				zap.String("shipment_id", shipmentId),
				zap.Error(err))
		}
		zap.L().Info("Linked pending debit",
			zap.String("user_id", tx.UserId),
			zap.String("shipment_id", shipmentId))
		return outcomeLinked, nil

	case errors.Is(err, store.ErrNotFound):
		// RefundDebit raises its own alert when the credit cannot be applied.
		if err := r.refunder.RefundDebit(ctx, tx.UserId, shipmentId, tx.Amount.Abs(), tx.Currency); err != nil {
			return 0, err
		}
		zap.L().Info("Refunded orphaned debit",
			zap.String("user_id", tx.UserId),
			zap.String("shipment_id", shipmentId),
			zap.String("amount", tx.Amount.Abs().String()))
		return outcomeRefunded, nil

	default:
		r.raise(ctx, tx, "could not look up shipment for pending debit", err)
		return 0, err
	}
}

func (r *Reconciler) raise(ctx context.Context, tx models.Transaction, message string, err error) {
	a := alert.New(alert.KindReconcileFailed, tx.UserId, tx.Reference, tx.Amount.Abs(), tx.Currency, message, err)
	if nerr := r.notifier.Notify(ctx, a); nerr != nil {
		zap.L().Error("Failed to deliver alert", zap.String("kind", a.Kind), zap.Error(nerr))
	}
}
