package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/config"
	"github.com/spec-kit/incident-coordinator/internal/coordinator"
)

// Reconciler runs the periodic reconciliation sweep.
type Reconciler struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
	cfg    config.ReconcilerConfig
}

// NewReconciler creates the worker.
func NewReconciler(coord *coordinator.Coordinator, logger *zap.Logger, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{coord: coord, logger: logger, cfg: cfg}
}

// Run sweeps until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval())
	defer ticker.Stop()

	r.logger.Info("reconciliation sweep started",
		zap.Duration("interval", r.cfg.SweepInterval()),
		zap.Int("batch_size", r.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciliation sweep stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	report, err := r.coord.ReconcileSweep(ctx, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("reconciliation sweep failed", zap.Error(err))
		return
	}
	if report.Scanned == 0 {
		return
	}
	r.logger.Info("reconciliation sweep completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("resolved", report.Resolved),
		zap.Int("failed", report.Failed),
		zap.Int("deferred", report.Deferred))
}
