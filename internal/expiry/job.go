// Package expiry implements the expiry notification run: find ingredients
// expiring inside the window, group them per user, and send each user one
// digest email, logging every (user, ingredient) outcome.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pantrynotify/internal/config"
	"pantrynotify/internal/lock"
	"pantrynotify/internal/notifications/email"
	"pantrynotify/internal/types"
)

const (
	// LockKey serializes runs across every entry point.
	LockKey = "expiry_notifications"
	// JobType is the job_history job_type value.
	JobType = "expiry_notifications"

	simulationMessage  = "simulation mode"
	deadlineMessage    = "run deadline exceeded"
	cancelledMessage   = "run cancelled"
	logWriteTimeout    = 5 * time.Second
	minDaysAhead       = 1
	maxDaysAhead       = 90
	defaultConcurrency = 4
)

// RunOptions are the per-invocation parameters. A nil DaysAhead uses the
// configured default.
type RunOptions struct {
	DaysAhead     *int
	ManualTrigger bool
	TestMode      bool
	UserID        string
}

// Config holds the job's tuning knobs.
type Config struct {
	DefaultDaysAhead  int
	WorkerConcurrency int
	SendTimeout       time.Duration
	RunDeadline       time.Duration
	LockTTL           time.Duration
	DedupPolicy       string
	// Simulated marks the sender as a SimulatedEmailProvider.
	Simulated bool
}

// ConfigFrom maps application config onto the job.
func ConfigFrom(cfg *config.Config, simulated bool) Config {
	return Config{
		DefaultDaysAhead:  cfg.Job.DaysAhead,
		WorkerConcurrency: cfg.Job.WorkerConcurrency,
		SendTimeout:       cfg.Job.SendTimeout,
		RunDeadline:       cfg.Job.RunDeadline,
		LockTTL:           cfg.LockTTL(),
		DedupPolicy:       cfg.Job.DedupPolicy,
		Simulated:         simulated,
	}
}

// Deps are the job's collaborators. Store, Directory, Log and Sender are
// required; the rest default to no-ops.
type Deps struct {
	Store     IngredientStore
	Directory UserDirectory
	Log       NotificationLog
	Sender    DigestSender
	Locker    lock.Locker
	History   JobHistorian
	Metrics   Metrics
	Failures  FailurePublisher
	Clock     types.Clock
	Logger    *slog.Logger
}

// Job runs expiry notifications. It is safe for concurrent use; overlapping
// runs are rejected by the lock.
type Job struct {
	cfg       Config
	store     IngredientStore
	directory UserDirectory
	log       NotificationLog
	sender    DigestSender
	locker    lock.Locker
	history   JobHistorian
	metrics   Metrics
	failures  FailurePublisher
	clock     types.Clock
	logger    *slog.Logger
	newRunID  func() string
}

// NewJob validates deps and fills defaults.
func NewJob(cfg Config, deps Deps) (*Job, error) {
	switch {
	case deps.Store == nil:
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "ingredient store is not configured", nil)
	case deps.Directory == nil:
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "user directory is not configured", nil)
	case deps.Log == nil:
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "notification log is not configured", nil)
	case deps.Sender == nil:
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "email sender is not configured", nil)
	}
	if cfg.DefaultDaysAhead == 0 {
		cfg.DefaultDaysAhead = 3
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = defaultConcurrency
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RunDeadline <= 0 {
		cfg.RunDeadline = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.RunDeadline + time.Minute
	}
	if cfg.DedupPolicy == "" {
		cfg.DedupPolicy = config.DedupTier
	}

	j := &Job{
		cfg:       cfg,
		store:     deps.Store,
		directory: deps.Directory,
		log:       deps.Log,
		sender:    deps.Sender,
		locker:    deps.Locker,
		history:   deps.History,
		metrics:   deps.Metrics,
		failures:  deps.Failures,
		clock:     deps.Clock,
		logger:    deps.Logger,
		newRunID:  uuid.NewString,
	}
	if j.metrics == nil {
		j.metrics = noopMetrics{}
	}
	if j.clock == nil {
		j.clock = types.RealClock{}
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j, nil
}

// Mode reports how sends are delivered for the given options.
func (j *Job) Mode(testMode bool) types.RunMode {
	switch {
	case j.cfg.Simulated:
		return types.ModeSimulation
	case testMode:
		return types.ModeTest
	default:
		return types.ModeLive
	}
}

func (j *Job) resolveDaysAhead(v *int) (int, error) {
	if v == nil {
		return j.cfg.DefaultDaysAhead, nil
	}
	if *v < minDaysAhead || *v > maxDaysAhead {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationDaysAhead,
			fmt.Sprintf("daysAhead must be between %d and %d", minDaysAhead, maxDaysAhead), nil,
			map[string]any{"days_ahead": *v})
	}
	return *v, nil
}

// Run executes one notification pass. Per-recipient failures are counted in
// the result; only validation, lock and setup failures return an error.
func (j *Job) Run(ctx context.Context, opts RunOptions) (*types.RunResult, error) {
	if opts.ManualTrigger && types.GetTrigger(ctx) == types.TriggerScheduled {
		ctx = types.WithTrigger(ctx, types.TriggerManual)
	}
	trigger := types.GetTrigger(ctx)
	started := time.Now()

	result, err := j.run(ctx, opts)
	if err != nil {
		code := types.ErrCodeInternalUnexpected
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		j.metrics.RecordRunFailure(context.WithoutCancel(ctx), trigger, code)
		return nil, err
	}
	j.metrics.RecordRun(context.WithoutCancel(ctx), trigger, result, time.Since(started))
	return result, nil
}

func (j *Job) run(ctx context.Context, opts RunOptions) (*types.RunResult, error) {
	daysAhead, err := j.resolveDaysAhead(opts.DaysAhead)
	if err != nil {
		return nil, err
	}

	runID := j.newRunID()
	logger := j.logger.With(
		"run_id", runID,
		"trigger", string(types.GetTrigger(ctx)),
		"days_ahead", daysAhead,
		"test_mode", opts.TestMode,
	)

	if j.locker != nil {
		lease, err := j.locker.TryAcquire(ctx, LockKey, j.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if lease == nil {
			return nil, types.NewAppError(types.ErrCodeConflictRunInProgress, "another notification run is in progress", nil)
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
			defer cancel()
			if err := j.locker.Release(relCtx, lease); err != nil {
				logger.WarnContext(relCtx, "failed to release run lock", "error", err)
			}
		}()
	}

	var historyID int64
	if j.history != nil {
		if historyID, err = j.history.Start(ctx, JobType); err != nil {
			logger.WarnContext(ctx, "failed to record job start", "error", err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, j.cfg.RunDeadline)
	defer cancel()

	result, runErr := j.execute(runCtx, logger, runID, daysAhead, opts)

	if j.history != nil && historyID != 0 {
		status, items := "success", 0
		if runErr != nil {
			status = "failed"
		} else {
			items = result.EmailsSent
		}
		if err := j.history.Finish(context.WithoutCancel(ctx), historyID, status, items, runErr); err != nil {
			logger.WarnContext(ctx, "failed to record job finish", "error", err)
		}
	}
	if runErr != nil {
		logger.ErrorContext(ctx, "notification run failed", "error", runErr)
		return nil, runErr
	}

	logger.InfoContext(ctx, "notification run complete",
		"mode", string(result.Mode),
		"expiring_ingredients", result.ExpiringIngredients,
		"users_to_notify", result.UsersToNotify,
		"emails_sent", result.EmailsSent,
		"email_errors", result.EmailErrors,
		"log_errors", result.LogErrors,
		"already_notified", result.AlreadyNotified,
	)
	return result, nil
}

func (j *Job) execute(ctx context.Context, logger *slog.Logger, runID string, daysAhead int, opts RunOptions) (*types.RunResult, error) {
	now := j.clock.Now().UTC()
	window := types.NewNotificationWindow(now, daysAhead)
	result := &types.RunResult{
		Timestamp: now,
		DateRange: window.DateRange(),
		Mode:      j.Mode(opts.TestMode),
		DaysAhead: daysAhead,
	}

	ingredients, err := j.store.ListExpiring(ctx, types.ExpiringQuery{
		From:    window.Today,
		To:      window.End,
		OwnerID: opts.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("query expiring ingredients: %w", err)
	}
	ingredients = inWindow(window, ingredients)
	result.ExpiringIngredients = len(ingredients)
	if len(ingredients) == 0 {
		logger.InfoContext(ctx, "no expiring ingredients", "from", result.DateRange.From, "to", result.DateRange.To)
		return result, nil
	}

	users, err := j.directory.UsersWithExpiringIngredients(ctx, daysAhead)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	recipients := buildRecipients(window, ingredients, users, opts.UserID)

	if !opts.TestMode {
		idx, err := loadDedupIndex(ctx, j.log, j.cfg.DedupPolicy, window, recipients)
		if err != nil {
			return nil, err
		}
		kept := recipients[:0]
		for _, r := range recipients {
			r, skipped := idx.filter(window.Today, r)
			result.AlreadyNotified += skipped
			if len(r.Ingredients) > 0 {
				kept = append(kept, r)
			}
		}
		recipients = kept
	}
	result.UsersToNotify = len(recipients)

	d := &dispatcher{
		job:      j,
		logger:   logger,
		runID:    runID,
		window:   window,
		testMode: opts.TestMode,
		result:   result,
	}
	d.dispatch(ctx, recipients)
	return result, nil
}

// dispatcher fans recipients out over a bounded pool. Each task records its
// own outcome and never returns an error, so one failure cannot cancel the
// others.
type dispatcher struct {
	job      *Job
	logger   *slog.Logger
	runID    string
	window   types.NotificationWindow
	testMode bool

	mu     sync.Mutex
	result *types.RunResult
}

func (d *dispatcher) dispatch(ctx context.Context, recipients []types.NotificationRecipient) {
	var g errgroup.Group
	g.SetLimit(d.job.cfg.WorkerConcurrency)
	for _, r := range recipients {
		g.Go(func() error {
			d.process(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *dispatcher) process(ctx context.Context, r types.NotificationRecipient) {
	logger := d.logger.With("user_id", r.UserID, "dest", email.RedactEmail(r.Email))

	if err := ctx.Err(); err != nil {
		msg := deadlineMessage
		if !errors.Is(err, context.DeadlineExceeded) {
			msg = cancelledMessage
		}
		d.recordFailure(ctx, logger, r, types.NewAppError(types.ErrCodeUpstreamTimeout, msg, err), msg)
		return
	}

	digest := email.Digest{
		Sections:  Bucket(d.window.Today, r.Ingredients),
		DaysAhead: d.window.DaysAhead,
		TestMode:  d.testMode,
	}
	refID := d.runID + ":" + r.UserID

	sendCtx, cancel := context.WithTimeout(ctx, d.job.cfg.SendTimeout)
	started := time.Now()
	_, err := d.job.sender.Send(sendCtx, r.Email, digest, refID)
	cancel()
	d.job.metrics.RecordSend(context.WithoutCancel(ctx), d.job.sender.ProviderName(), err == nil, time.Since(started))

	if err != nil {
		logger.WarnContext(ctx, "digest delivery failed", "error", err)
		d.recordFailure(ctx, logger, r, err, err.Error())
		return
	}

	var note *string
	if d.job.cfg.Simulated {
		msg := simulationMessage
		note = &msg
	}
	logErrs := d.writeLogs(ctx, logger, r, true, note)

	d.mu.Lock()
	d.result.EmailsSent++
	d.result.LogErrors += logErrs
	d.mu.Unlock()
}

func (d *dispatcher) recordFailure(ctx context.Context, logger *slog.Logger, r types.NotificationRecipient, err error, message string) {
	logErrs := d.writeLogs(ctx, logger, r, false, &message)

	d.mu.Lock()
	d.result.EmailErrors++
	d.result.LogErrors += logErrs
	d.mu.Unlock()

	if d.job.failures == nil || d.job.cfg.Simulated {
		return
	}
	code := types.ErrCodeUpstreamEmailProvider
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	ids := make([]string, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ids[i] = ing.ID
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
	defer cancel()
	pubErr := d.job.failures.PublishFailure(pubCtx, types.DeliveryFailureMessage{
		RunID:         d.runID,
		UserID:        r.UserID,
		IngredientIDs: ids,
		ErrorCode:     code,
		ErrorMessage:  message,
		Retryable:     email.Retryable(err),
		FailedAt:      d.job.clock.Now().UTC(),
	})
	if pubErr != nil {
		logger.WarnContext(ctx, "failed to publish delivery failure", "error", pubErr)
	}
}

// writeLogs appends one row per ingredient and returns how many writes
// failed. Writes use a context detached from the run so a deadline hit
// mid-run still leaves an audit trail.
func (d *dispatcher) writeLogs(ctx context.Context, logger *slog.Logger, r types.NotificationRecipient, sent bool, message *string) int {
	failed := 0
	sentAt := d.job.clock.Now().UTC()
	for _, ing := range r.Ingredients {
		notifType := types.NotificationTypeTest
		if !d.testMode {
			notifType = types.NotificationTypeFor(Classify(d.window.Today, ing))
		}
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
		err := d.job.log.Log(logCtx, types.NotificationLogEntry{
			UserID:           r.UserID,
			IngredientID:     ing.ID,
			NotificationType: notifType,
			SentAt:           sentAt,
			EmailSent:        sent,
			ErrorMessage:     message,
		})
		cancel()
		if err != nil {
			failed++
			logger.ErrorContext(ctx, "failed to write notification log",
				"ingredient_id", ing.ID,
				"kind", string(types.KindOf(err)),
				"error", err,
			)
		}
	}
	return failed
}
