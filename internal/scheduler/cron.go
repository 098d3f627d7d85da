// Package scheduler runs the expiry job on a cron schedule when the notifier
// is deployed as a long-running daemon instead of behind EventBridge.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pantrynotify/internal/expiry"
	"pantrynotify/internal/types"
)

// JobRunner is the slice of expiry.Job the scheduler drives.
type JobRunner interface {
	Run(ctx context.Context, opts expiry.RunOptions) (*types.RunResult, error)
}

// CronConfig holds the daemon schedule.
type CronConfig struct {
	// Spec is a standard five-field cron expression or a descriptor such as
	// "@daily".
	Spec     string
	Timezone string
}

// CronRunner owns a cron engine with a single entry for the expiry job.
type CronRunner struct {
	engine *cron.Cron
	job    JobRunner
	spec   string
	logger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	entry   cron.EntryID
}

// NewCronRunner validates the schedule and timezone up front so a bad
// CRON_SCHEDULE fails startup rather than the first tick.
func NewCronRunner(job JobRunner, cfg CronConfig, logger *slog.Logger) (*CronRunner, error) {
	if job == nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "scheduler requires a job", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "invalid CRON_TIMEZONE: "+tz, err)
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "invalid CRON_SCHEDULE: "+cfg.Spec, err)
	}

	cl := cronLogger{logger: logger}
	return &CronRunner{
		engine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		job:     job,
		spec:    cfg.Spec,
		logger:  logger,
		baseCtx: context.Background(),
	}, nil
}

// Start registers the job and starts the engine. Runs inherit ctx values and
// cancellation.
func (r *CronRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseCtx = ctx
	id, err := r.engine.AddFunc(r.spec, func() { r.RunOnce(r.context()) })
	if err != nil {
		return types.NewAppError(types.ErrCodeConfigInvalid, "failed to register cron entry", err)
	}
	r.entry = id
	r.engine.Start()
	r.logger.InfoContext(ctx, "expiry scheduler started", "schedule", r.spec, "next_run", r.engine.Entry(id).Next)
	return nil
}

// Stop halts scheduling and waits for an in-flight run, bounded by ctx.
func (r *CronRunner) Stop(ctx context.Context) {
	done := r.engine.Stop()
	select {
	case <-done.Done():
		r.logger.InfoContext(ctx, "expiry scheduler stopped")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "expiry scheduler stop timed out with a run in flight")
	}
}

// Next reports the next scheduled run, or the zero time before Start.
func (r *CronRunner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entry == 0 {
		return time.Time{}
	}
	return r.engine.Entry(r.entry).Next
}

func (r *CronRunner) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseCtx
}

// RunOnce executes one scheduled run with default options. A run skipped
// because another instance holds the lock is logged at info.
func (r *CronRunner) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx = types.WithTrigger(ctx, types.TriggerScheduled)

	result, err := r.job.Run(ctx, expiry.RunOptions{})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictRunInProgress {
			r.logger.InfoContext(ctx, "scheduled run skipped; another run holds the lock")
			return
		}
		r.logger.ErrorContext(ctx, "scheduled run failed", "error", err)
		return
	}
	r.logger.InfoContext(ctx, "scheduled run finished",
		"message", expiry.Summary(result),
		"emails_sent", result.EmailsSent,
		"email_errors", result.EmailErrors,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
