package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/metrics"
)

// Prefix is the path prefix of the ops endpoints.
const Prefix = "/brand-engine"

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the ops endpoints report on.
type Deps struct {
	DB            Pinger
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.Metrics
	MirrorEnabled bool
	ReadyTimeout  time.Duration
}

// RegisterRoutes mounts the health, readiness and metrics endpoints on a
// standard library http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, deps Deps) http.Handler {
	if deps.ReadyTimeout <= 0 {
		deps.ReadyTimeout = 2 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	mux := http.NewServeMux()

	// liveness
	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// readiness: the primary store must answer; the mirror is best-effort and only reported
	mux.HandleFunc("GET "+Prefix+"/ready", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"database": "ok", "mirror": "disabled"}
		if deps.MirrorEnabled {
			body["mirror"] = "enabled"
		}

		ctx, cancel := context.WithTimeout(r.Context(), deps.ReadyTimeout)
		defer cancel()
		if deps.DB == nil {
			status, body["database"] = http.StatusServiceUnavailable, "not configured"
		} else if err := deps.DB.PingContext(ctx); err != nil {
			logger.Warnw("readiness check failed", "err", err)
			status, body["database"] = http.StatusServiceUnavailable, "unavailable"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	// wrap with security headers middleware then logging middleware
	return LoggingMiddleware(logger, deps.Metrics)(SecurityHeadersMiddleware()(mux))
}
