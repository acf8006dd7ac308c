package mirror

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-brand-go/pkg/utilities"
)

// PendingSource lists aggregates whose last mirror write failed.
type PendingSource[T Mirrorable] interface {
	ListPendingSync(ctx context.Context, limit int) ([]T, error)
}

// Syncer is the part of Synchronizer the reconciler needs.
type Syncer interface {
	Sync(ctx context.Context, m Mirrorable) bool
	Collection() string
}

// SweepReport summarizes one reconciliation sweep.
type SweepReport struct {
	ID      string
	Pending int
	Synced  int
	Failed  int
}

// Reconciler retries mirror writes for rows left with a dirty sync flag.
type Reconciler[T Mirrorable] struct {
	source  PendingSource[T]
	sync    Syncer
	batch   int
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewReconciler builds a reconciler sweeping up to batch rows at a time.
func NewReconciler[T Mirrorable](source PendingSource[T], sync Syncer, batch int, logger *zap.SugaredLogger, m *metrics.Metrics) *Reconciler[T] {
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Reconciler[T]{source: source, sync: sync, batch: batch, logger: logger, metrics: m}
}

// Sweep retries one batch of pending rows.
func (r *Reconciler[T]) Sweep(ctx context.Context) (SweepReport, error) {
	rep := SweepReport{ID: utilities.NewKSUID()}
	res := r.sync.Collection()

	items, err := r.source.ListPendingSync(ctx, r.batch)
	if err != nil {
		r.metrics.ReconcileSweeps.WithLabelValues(res, "error").Inc()
		return rep, fmt.Errorf("list pending sync: %w", err)
	}
	rep.Pending = len(items)
	r.metrics.SyncPending.WithLabelValues(res).Set(float64(len(items)))

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if r.sync.Sync(ctx, it) {
			rep.Synced++
		} else {
			rep.Failed++
		}
	}

	result := "ok"
	if rep.Failed > 0 {
		result = "partial"
	}
	r.metrics.ReconcileSweeps.WithLabelValues(res, result).Inc()
	if rep.Pending > 0 {
		r.logger.Infow("reconcile sweep",
			"sweep_id", rep.ID,
			"resource", res,
			"pending", rep.Pending,
			"synced", rep.Synced,
			"failed", rep.Failed,
		)
	}
	return rep, ctx.Err()
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warnw("reconcile sweep failed", "resource", r.sync.Collection(), "err", err)
			}
		}
	}
}
