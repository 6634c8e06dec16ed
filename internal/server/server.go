// Package server implements the admin HTTP surface of the golem daemon.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eugener/golem/internal/telemetry"
)

// ReadyChecker reports whether the daemon is ready to serve.
type ReadyChecker func(ctx context.Context) error

// WorkerStatus is one hosted worker's snapshot for the status endpoint.
type WorkerStatus struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Pending int    `json:"pending"`
}

// StatusFunc returns the current snapshot of all hosted workers.
type StatusFunc func() []WorkerStatus

// Deps holds all dependencies for the admin server.
type Deps struct {
	ReadyCheck ReadyChecker        // nil = always ready (for tests)
	Workers    StatusFunc          // nil = empty status
	Metrics    *telemetry.Metrics  // nil = no request metrics
	Gatherer   prometheus.Gatherer // backing /metrics
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/workers", s.handleWorkers)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

type server struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}
