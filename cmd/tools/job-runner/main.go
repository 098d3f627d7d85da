// Package main implements the job-runner CLI for invoking the expiry
// notification job directly, bypassing Lambda and the HTTP API.
//
// This tool is intended for local development, backfills and operational
// debugging.
//
// Usage:
//
//	go run ./cmd/tools/job-runner
//	go run ./cmd/tools/job-runner --days-ahead=7 --user-id=3f2c...
//	go run ./cmd/tools/job-runner --dry-run --reference-time=2026-01-15T08:00:00Z
//	go run ./cmd/tools/job-runner --print-request --test-mode
//
// Configuration is read from the environment (or a .env file via godotenv).
// --dry-run forces the simulated email provider so nothing is sent, though
// the run still takes the lock and records history. --print-request prints
// the RunRequest JSON without executing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pantrynotify/internal/api/handlers"
	"pantrynotify/internal/app"
	"pantrynotify/internal/core"
	"pantrynotify/internal/expiry"
	"pantrynotify/internal/types"
)

type cliOptions struct {
	request       types.RunRequest
	referenceTime *time.Time
	dryRun        bool
	applySchema   bool
	printRequest  bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if opts.printRequest {
		if err := writeJSON(os.Stdout, opts.request); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, errOut io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(errOut)

	daysAhead := fs.Int("days-ahead", 0, "Notification window in days (default: EXPIRY_DAYS_AHEAD)")
	userID := fs.String("user-id", "", "Restrict the run to one user")
	testMode := fs.Bool("test-mode", false, "Mark the run as a test; emails carry a test banner")
	refTime := fs.String("reference-time", "", "Override the run clock (RFC3339, e.g., 2026-01-15T08:00:00Z)")
	dryRun := fs.Bool("dry-run", false, "Use the simulated email provider")
	applySchema := fs.Bool("apply-schema", false, "Create job_locks and job_history if missing")
	printRequest := fs.Bool("print-request", false, "Print the RunRequest JSON without executing")

	fs.Usage = func() {
		fmt.Fprintf(errOut, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(errOut, "Run the expiry notification job once.\n\n")
		fmt.Fprintf(errOut, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts := cliOptions{
		request: types.RunRequest{
			ManualTrigger: true,
			TestMode:      *testMode,
			UserID:        *userID,
		},
		dryRun:       *dryRun,
		applySchema:  *applySchema,
		printRequest: *printRequest,
	}
	if *daysAhead != 0 {
		opts.request.DaysAhead = daysAhead
	}
	if *refTime != "" {
		t, err := time.Parse(time.RFC3339, *refTime)
		if err != nil {
			return cliOptions{}, fmt.Errorf("invalid --reference-time %q: %w", *refTime, err)
		}
		t = t.UTC()
		opts.referenceTime = &t
	}
	return opts, nil
}

func run(opts cliOptions) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	if err := core.NewValidator(logger).ValidateStruct(opts.request); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildOpts := app.Options{ApplySchema: opts.applySchema, ForceSimulation: opts.dryRun}
	if opts.referenceTime != nil {
		buildOpts.Clock = types.FixedClock{T: *opts.referenceTime}
	}
	rt, err := app.Build(ctx, cfg, logger, buildOpts)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Job.Run(types.WithTrigger(ctx, types.TriggerCLI), handlers.RunOptionsFrom(opts.request))
	if err != nil {
		_, resp := types.NewRunErrorResponse(err, time.Now(), true)
		_ = writeJSON(os.Stdout, resp)
		return err
	}

	return writeJSON(os.Stdout, types.RunResponse{
		Success: true,
		Message: expiry.Summary(result),
		Results: result,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
