// Package core provides the HTTP chassis for the zonewatch daemon.
// It creates a chi router and enforces the cross-cutting concerns --
// recovery, timeouts, request correlation, logging, metrics, and operator
// authentication -- before requests reach the domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zonewatch/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// The daemon wires the CloudWatch recorder here; a nil collector disables
// recording entirely.
type MetricsCollector interface {
	// RecordRequest records one completed request including latency and
	// final status. Implementations absorb their own failures.
	RecordRequest(ctx context.Context, method, endpoint, status string, duration time.Duration)
}

// Server encapsulates the chassis dependencies for the zonewatch API,
// allowing for easy injection during testing and distinct configuration
// for different environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are the dependency checks executed by GET /health
	// (database pool, MQTT broker, push gateway).
	HealthProbes []HealthProbe

	// V1RouteRegistrars are populated by the application entry point with
	// the domain handlers' route registration functions. The indirection
	// avoids import cycles between core and the handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Internal router
	router *chi.Mux
}

// NewServer initializes the chassis, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes or
// equivalent) after construction. This separation allows tests to customize
// route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
// Used by http.Server in the daemon and by httptest in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
