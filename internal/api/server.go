// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package api wires the status surface into a runnable [http.Server].

The daemon's real work happens in the session controller; this package only
exposes read-only operational endpoints: health probes, the current session
snapshot, and Prometheus metrics.

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/connectd are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/puconnect/core/internal/platform/config"
	"github.com/puconnect/core/internal/platform/constants"
	"github.com/puconnect/core/internal/platform/metrics"
	"github.com/puconnect/core/internal/platform/middleware"
	"github.com/puconnect/core/internal/platform/respond"
	"github.com/puconnect/core/internal/session"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// SnapshotSource reports the current session state. Implemented by
// [session.Controller].
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// # Server Initialization

// NewServer constructs the chi router with the middleware chain and
// registers the status endpoints.
func NewServer(
	cfg *config.Config,
	log *slog.Logger,
	snapshots SnapshotSource,
	health HealthDependencies,
	gatherer prometheus.Gatherer,
) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.DefaultWriteTimeout))
	r.Use(middleware.PanicRecovery(log))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	liveness, readiness := NewHealthHandlers(health, log)
	r.Get("/health", liveness)
	r.Get("/ready", readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	// # Status API
	r.Get("/session", func(writer http.ResponseWriter, request *http.Request) {
		respond.OK(writer, snapshots.Snapshot())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.StatusPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("status server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
