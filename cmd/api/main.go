// Package main is the entry point for the pantrynotify HTTP API.
//
// It loads configuration, builds the shared runtime (store, lock, email
// provider, metrics) and serves the manual trigger endpoint
// POST /v1/notifications/expiry/run alongside /health and /metrics.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pantrynotify/internal/api/handlers"
	"pantrynotify/internal/app"
	"pantrynotify/internal/auth"
	"pantrynotify/internal/config"
	"pantrynotify/internal/core"
	"pantrynotify/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("pantrynotify API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	rt, err := app.Build(context.Background(), cfg, logger, app.Options{Prometheus: true})
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	srv, err := newServer(cfg, logger, rt.Job, rt.Prometheus, rt.Probes)
	if err != nil {
		rt.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(rt.Close)

	return runHTTPServer(srv, cfg, logger)
}

// newServer wires the chassis around job. metrics may be nil.
func newServer(cfg *config.Config, logger *slog.Logger, job handlers.JobRunner, metrics *telemetry.PrometheusMetrics, probes []core.HealthProbe) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}

	srv.Authenticator = auth.NewAdminKeyVerifier(auth.AdminKeyVerifierConfig{
		ServiceRoleKey:  cfg.Database.ServiceRoleKey,
		AdminAPIKeyHash: cfg.Security.AdminAPIKeyHash,
		Logger:          logger,
	})
	if metrics != nil {
		srv.Metrics = metrics
		srv.MetricsHandler = metrics.Handler()
	}
	srv.HealthProbes = probes

	expiryHandler := handlers.NewExpiryHandler(job, srv.Validator, logger, cfg.Security.ExposeErrorStack)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, expiryHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout must outlast a full run.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Job.RunDeadline + 2*time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
