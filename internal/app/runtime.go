// Package app assembles the expiry job and its collaborators from
// configuration. Every entry point (Lambda, HTTP API, cron daemon, CLI) builds
// the same Runtime so they differ only in how a run is triggered.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"pantrynotify/internal/config"
	"pantrynotify/internal/core"
	"pantrynotify/internal/db"
	"pantrynotify/internal/expiry"
	"pantrynotify/internal/external"
	"pantrynotify/internal/lock"
	notifcore "pantrynotify/internal/notifications/core"
	"pantrynotify/internal/notifications/email"
	"pantrynotify/internal/telemetry"
	"pantrynotify/internal/types"
)

const providerHTTPTimeout = 15 * time.Second

// Options select the optional pieces of a Runtime.
type Options struct {
	// Prometheus registers an in-process registry for long-running modes.
	Prometheus bool
	// ApplySchema creates job_locks and job_history before the first run.
	ApplySchema bool
	// ForceSimulation swaps the configured provider for the simulated one.
	ForceSimulation bool
	Clock           types.Clock
}

// Runtime is a fully wired job plus the handles entry points need for
// health checks, metrics and shutdown.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Job        *expiry.Job
	Prometheus *telemetry.PrometheusMetrics
	Probes     []core.HealthProbe
	Simulated  bool

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// NewLogger returns the JSON slog logger used by every entry point.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// LoadConfig loads configuration with an SSM provider for the ambient region.
// The provider is only consulted outside APP_ENV=local.
func LoadConfig() (*config.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.LoadConfig(config.NewSSMProvider(region))
}

// IsLambda reports whether the process runs inside the Lambda runtime.
func IsLambda() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// Build connects to the store, selects the lock and email backends and
// constructs the job. On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, pool.Close)
	rt.Probes = append(rt.Probes, core.PingProbe{ProbeName: "database", Checker: pool})

	if opts.ApplySchema {
		if err := db.EnsureOperationalSchema(ctx, pool); err != nil {
			return nil, err
		}
	}

	locker, err := rt.buildLocker(ctx, pool)
	if err != nil {
		return nil, err
	}

	emailCfg := cfg.Email
	if opts.ForceSimulation {
		emailCfg.Provider = config.ProviderResend
		emailCfg.ResendAPIKey = ""
	}
	sel, err := external.NewEmailProvider(ctx, emailCfg, cfg.AWS.Region, &http.Client{Timeout: providerHTTPTimeout}, logger)
	if err != nil {
		return nil, err
	}
	rt.Simulated = sel.Simulated

	renderer, err := email.NewRenderer(email.RendererConfig{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		AppURL:      cfg.Server.AppURL,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "failed to load email templates", err)
	}
	sender := email.NewDigestSender(email.DigestSenderConfig{Provider: sel.Provider, Renderer: renderer, Logger: logger})

	metrics, failures, err := rt.buildAWSSinks(ctx, opts)
	if err != nil {
		return nil, err
	}

	rt.Job, err = expiry.NewJob(expiry.ConfigFrom(cfg, sel.Simulated), expiry.Deps{
		Store:     db.NewIngredientRepository(pool, cfg.Store.PageSize),
		Directory: db.NewUserDirectory(pool),
		Log:       db.NewNotificationLogRepository(pool),
		Sender:    sender,
		Locker:    locker,
		History:   db.NewJobHistoryRepository(pool),
		Metrics:   metrics,
		Failures:  failures,
		Clock:     opts.Clock,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "runtime ready",
		"provider", sender.ProviderName(),
		"simulated", sel.Simulated,
		"lock_backend", fmt.Sprintf("%T", locker),
		"dedup_policy", cfg.Job.DedupPolicy,
	)
	return rt, nil
}

func (rt *Runtime) buildLocker(ctx context.Context, pool db.DBTX) (lock.Locker, error) {
	if !rt.Config.Lock.RedisURL.IsSet() {
		return lock.NewPostgresLocker(db.NewJobLockRepository(pool)), nil
	}
	client, err := lock.NewRedisClient(rt.Config.Lock.RedisURL.Unmask())
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "redis is unreachable", err)
	}
	rt.Probes = append(rt.Probes, core.PingProbe{ProbeName: "redis", Checker: redisPinger{client}})
	return lock.NewRedisLocker(client), nil
}

// buildAWSSinks wires CloudWatch, Prometheus and the failed-delivery queue.
// AWS config is only loaded when one of the AWS sinks is enabled.
func (rt *Runtime) buildAWSSinks(ctx context.Context, opts Options) (expiry.Metrics, expiry.FailurePublisher, error) {
	cfg := rt.Config
	var recorders []telemetry.RunRecorder

	if opts.Prometheus {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.Prometheus = telemetry.NewPrometheusMetrics(reg)
		recorders = append(recorders, rt.Prometheus)
	}

	needAWS := cfg.Observability.EnableCloudWatch || cfg.AWS.FailedDeliveryQueueURL != ""
	if !needAWS {
		return telemetry.NewFanout(recorders...), nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeConfigInvalid, "failed to load AWS config", err)
	}
	sinkLogger := notifcore.NewSlogLogger(rt.Logger)

	if cfg.Observability.EnableCloudWatch {
		recorders = append(recorders, notifcore.NewCloudWatchRunMetrics(
			cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, sinkLogger))
	}

	var failures expiry.FailurePublisher
	if cfg.AWS.FailedDeliveryQueueURL != "" {
		failures = notifcore.NewFailurePublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.FailedDeliveryQueueURL, sinkLogger)
	}
	return telemetry.NewFanout(recorders...), failures, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
