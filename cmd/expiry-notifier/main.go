// Package main is the entry point for the expiry notification job.
//
// The binary runs in one of three modes:
//   - Lambda (default outside APP_ENV=local): invoked by EventBridge or
//     directly with a RunRequest payload.
//   - Daemon (CRON_SCHEDULE set): runs the job on a cron schedule and serves
//     Prometheus metrics on METRICS_ADDR.
//   - Local (APP_ENV=local): reads one RunRequest from stdin, runs it once and
//     prints the response envelope.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"

	"pantrynotify/internal/app"
	"pantrynotify/internal/scheduler"
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

	daemon := cfg.Job.CronSchedule != ""
	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, logger, app.Options{Prometheus: daemon})
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}
	defer rt.Close()

	handler := NewHandler(rt.Job, logger, cfg.Security.ExposeErrorStack)

	switch {
	case daemon:
		return runDaemon(rt, logger)
	case cfg.Environment == "local" && !app.IsLambda():
		return runLocal(ctx, handler, os.Stdin, os.Stdout)
	default:
		logger.Info("starting lambda handler", "version", cfg.Build.Version)
		lambda.Start(handler.Handle)
		return nil
	}
}

// runLocal reads a single invocation payload from in. An empty input runs
// with defaults.
func runLocal(ctx context.Context, h *Handler, in io.Reader, out io.Writer) error {
	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	resp, err := h.Handle(ctx, payload)
	if err != nil {
		return err
	}

	var body json.RawMessage = []byte(resp.Body)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		StatusCode int             `json:"statusCode"`
		Body       json.RawMessage `json:"body"`
	}{resp.StatusCode, body}); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("run failed with status %d", resp.StatusCode)
	}
	return nil
}

func runDaemon(rt *app.Runtime, logger *slog.Logger) error {
	cfg := rt.Config
	runner, err := scheduler.NewCronRunner(rt.Job, scheduler.CronConfig{
		Spec:     cfg.Job.CronSchedule,
		Timezone: cfg.Job.CronTimezone,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Start(ctx); err != nil {
		return err
	}
	logger.Info("cron daemon started", "schedule", cfg.Job.CronSchedule, "next", runner.Next())

	metricsServer := &http.Server{
		Addr:              cfg.Observability.MetricsAddr,
		Handler:           metricsRouter(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("metrics server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	runner.Stop(shutdownCtx)
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	logger.Info("cron daemon stopped")
	return runErr
}

func metricsRouter(rt *app.Runtime) http.Handler {
	r := chi.NewRouter()
	if rt.Prometheus != nil {
		r.Handle("/metrics", rt.Prometheus.Handler())
	}
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		for _, p := range rt.Probes {
			if err := p.Check(req.Context()); err != nil {
				http.Error(w, p.Name()+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
