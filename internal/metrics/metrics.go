package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync outcomes.
const (
	OutcomeSynced    = "synced"
	OutcomeFailed    = "failed"
	OutcomeFlagError = "flag_error"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	SyncTotal       *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	LockConflicts   *prometheus.CounterVec
	ReconcileSweeps *prometheus.CounterVec
	SyncPending     *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SyncTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_engine_sync_total",
				Help: "Secondary store mirror writes by outcome",
			},
			[]string{"resource", "outcome"},
		),
		SyncDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brand_engine_sync_duration_seconds",
				Help:    "Duration of secondary store mirror writes",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"resource"},
		),
		LockConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_engine_lock_conflicts_total",
				Help: "Optimistic lock conflicts raised by the repository",
			},
			[]string{"resource", "op"},
		),
		ReconcileSweeps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_engine_reconcile_sweeps_total",
				Help: "Reconciliation sweeps by result",
			},
			[]string{"resource", "result"},
		),
		SyncPending: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brand_engine_sync_pending",
				Help: "Rows with a pending mirror write seen by the last sweep",
			},
			[]string{"resource"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_engine_http_requests_total",
				Help: "Ops HTTP requests by route pattern and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// Nop returns collectors registered on a private registry, for callers that do not export metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
