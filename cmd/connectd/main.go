// Copyright (c) 2026 PU Connect. All rights reserved.

// Command connectd is the entry point for the PU Connect session daemon.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the auth client, resolver, reporter, and session controller.
//  7. Boot the controller and start the status server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/puconnect/core/internal/api"
	"github.com/puconnect/core/internal/cache"
	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/messaging"
	"github.com/puconnect/core/internal/platform/config"
	"github.com/puconnect/core/internal/platform/constants"
	"github.com/puconnect/core/internal/platform/metrics"
	"github.com/puconnect/core/internal/platform/migration"
	pgstore "github.com/puconnect/core/internal/platform/postgres"
	redisstore "github.com/puconnect/core/internal/platform/redis"
	"github.com/puconnect/core/internal/presence"
	"github.com/puconnect/core/internal/profile"
	"github.com/puconnect/core/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[PU Connect] daemon_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	// Rebuild the logger now that the environment is known: development gets
	// human-readable output, everything else stays JSON.
	logLevel := slog.LevelInfo
	if cfg.Debug && !cfg.IsProduction() {
		// Debug output can echo payloads; never honor the flag in production.
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	log = slog.New(handler).With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	log.Debug("debug_logging_enabled")

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("status_port", cfg.StatusPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Metrics ────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// ── 7. Collaborator Clients ───────────────────────────────────────────
	authClient := identity.NewHTTPClient(cfg.AuthURL, cfg.AuthAnonKey, log)
	defer authClient.Close()

	notifier := messaging.NewSMSClient(cfg.SMSBaseURL, cfg.SMSAPIKey, cfg.SMSSender, cfg.SMSRate, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	profileStore := profile.NewPostgresStore(pool)
	resolver := profile.NewResolver(profileStore, authClient, log, collector)
	reporter := presence.NewReporter(profileStore, log, collector, cfg.HeartbeatInterval)
	snapshots := cache.NewRedisCache(rdb, constants.SnapshotTTL)

	controller := session.NewController(
		authClient, profileStore, resolver, reporter, snapshots, notifier, log, collector)

	if err := controller.Start(startupCtx); err != nil {
		// A boot failure leaves the controller in the error state but the
		// daemon stays up: the status surface reports the degradation and
		// the auth subscription recovers the session when connectivity does.
		log.Error("session_boot_degraded", slog.Any("error", err))
	}
	defer controller.Close()

	// ── 9. Status Server ──────────────────────────────────────────────────
	health := api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
		CheckAuth: func() error {
			probeCtx, cancel := context.WithTimeout(context.Background(), constants.AuthRequestTimeout)
			defer cancel()
			_, err := authClient.CurrentSession(probeCtx)
			return err
		},
	}

	server := api.NewServer(cfg, log, controller, health, registry)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("daemon stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
