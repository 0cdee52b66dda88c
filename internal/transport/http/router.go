// Package httptransport assembles the API router: the shared middleware chain,
// health and metrics endpoints, and every component's routes under /api.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"compliance/internal/platform/metrics"
	"compliance/internal/platform/middleware"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
)

// Routes is implemented by every component handler.
type Routes interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      middleware.JWTValidator
	RequestTimeout time.Duration
	Checks         map[string]HealthCheck
	// MetricsHandler defaults to the default Prometheus gatherer.
	MetricsHandler http.Handler
}

// NewRouter mounts /healthz and /metrics unauthenticated and every component
// under /api behind bearer authentication.
func NewRouter(cfg Config, routes ...Routes) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Latency(cfg.Metrics))
	}

	r.Get("/healthz", healthz(cfg.Checks))
	r.Handle("/metrics", cfg.MetricsHandler)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		for _, routes := range routes {
			routes.Register(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{"healthy": healthy, "checks": status})
	}
}
