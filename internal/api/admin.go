package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/metrics"
)

const readyTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// AdminServer serves probes and Prometheus metrics on a separate listener so
// the public surface only exposes the trigger route.
type AdminServer struct {
	router chi.Router
	ready  atomic.Bool
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewAdminServer builds the admin router. Readiness starts false until
// SetReady is called.
func NewAdminServer(checks map[string]ReadinessCheck, logger *zap.Logger) *AdminServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &AdminServer{
		checks: checks,
		logger: logger.Named("admin"),
	}
	r := chi.NewRouter()
	r.Use(recoverMiddleware(a.logger))
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	a.router = r
	return a
}

// Handler returns the Router for use with http.Server.
func (a *AdminServer) Handler() http.Handler {
	return a.router
}

// SetReady flips the readiness flag.
func (a *AdminServer) SetReady(ready bool) {
	a.ready.Store(ready)
}

func (a *AdminServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *AdminServer) readyz(w http.ResponseWriter, r *http.Request) {
	if !a.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
