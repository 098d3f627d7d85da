// Package config loads the process configuration once at startup. Values are
// resolved in priority order: OS environment, then a .env file, then AWS SSM
// Parameter Store (via *_SSM_PARAM pointer variables). Missing or malformed
// required values fail startup.
package config

import (
	"time"

	"pantrynotify/internal/types"
)

// SecretString is the redacted secret type used throughout configuration.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the
// sub-config they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"pantrynotify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Email         EmailConfig
	Job           JobConfig
	Lock          LockConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings for cmd/api.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// AppURL is linked from the digest email so users can open their pantry.
	AppURL string `envconfig:"APP_URL" default:"http://localhost:3000" validate:"url"`
}

// DatabaseConfig holds the store connection and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`
	// ServiceRoleKey is the privileged backend key. Scheduled invocations
	// present it as their bearer token.
	ServiceRoleKey SecretString `envconfig:"SERVICE_ROLE_KEY" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// StoreConfig tunes the ingredient query.
type StoreConfig struct {
	PageSize int `envconfig:"INGREDIENT_PAGE_SIZE" default:"500" validate:"min=1,max=10000"`
}

// Email providers selectable via EMAIL_PROVIDER.
const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
)

// EmailConfig selects and configures the transactional email provider. When
// the selected provider has no credentials the job runs in simulation mode.
type EmailConfig struct {
	Provider        string       `envconfig:"EMAIL_PROVIDER" default:"resend" validate:"oneof=resend sendgrid ses"`
	ResendAPIKey    SecretString `envconfig:"RESEND_API_KEY"`
	ResendBaseURL   string       `envconfig:"RESEND_BASE_URL" default:"https://api.resend.com" validate:"url"`
	SendGridAPIKey  SecretString `envconfig:"SENDGRID_API_KEY"`
	SendGridBaseURL string       `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com" validate:"url"`
	// SES authenticates with the ambient AWS credential chain, so it is
	// opted into explicitly.
	SESEnabled  bool   `envconfig:"SES_ENABLED" default:"false"`
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"notifications@pantrynotify.app" validate:"email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Pantry Tracker"`
}

// Simulated reports whether the configured provider lacks credentials.
func (e EmailConfig) Simulated() bool {
	switch e.Provider {
	case ProviderSendGrid:
		return !e.SendGridAPIKey.IsSet()
	case ProviderSES:
		return !e.SESEnabled
	default:
		return !e.ResendAPIKey.IsSet()
	}
}

// Dedup policies for NOTIFY_DEDUP_POLICY.
const (
	DedupTier = "tier"
	DedupDay  = "day"
	DedupNone = "none"
)

// JobConfig tunes the notification run.
type JobConfig struct {
	DaysAhead         int           `envconfig:"EXPIRY_DAYS_AHEAD" default:"3" validate:"min=1,max=90"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"4" validate:"min=1,max=64"`
	SendTimeout       time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	RunDeadline       time.Duration `envconfig:"RUN_DEADLINE" default:"5m"`
	DedupPolicy       string        `envconfig:"NOTIFY_DEDUP_POLICY" default:"tier" validate:"oneof=tier day none"`
	// CronSchedule switches cmd/expiry-notifier into daemon mode when set.
	CronSchedule string `envconfig:"CRON_SCHEDULE"`
	CronTimezone string `envconfig:"CRON_TIMEZONE" default:"UTC"`
}

// LockConfig selects the advisory lock backend. Redis is used when RedisURL
// is set, otherwise the job_locks table.
type LockConfig struct {
	RedisURL SecretString `envconfig:"REDIS_URL"`
	// TTLGrace is added to the run deadline to form the lock TTL.
	TTLGrace time.Duration `envconfig:"LOCK_TTL_GRACE" default:"1m"`
}

// AWSConfig holds regional settings and optional queue/metrics targets.
type AWSConfig struct {
	Region                 string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL            string `envconfig:"AWS_ENDPOINT_URL"`
	FailedDeliveryQueueURL string `envconfig:"FAILED_DELIVERY_QUEUE_URL" validate:"omitempty,url"`
}

// SecurityConfig holds the manual-trigger credentials and CORS settings.
type SecurityConfig struct {
	// AdminAPIKeyHash is a bcrypt hash of the operator key accepted by the
	// manual trigger endpoint in addition to the service role key.
	AdminAPIKeyHash    SecretString `envconfig:"ADMIN_API_KEY_HASH"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ExposeErrorStack   bool         `envconfig:"EXPOSE_ERROR_STACK" default:"false"`
}

// ObservabilityConfig holds metric sink settings.
type ObservabilityConfig struct {
	MetricNamespace  string `envconfig:"METRIC_NAMESPACE" default:"PantryNotify"`
	EnableCloudWatch bool   `envconfig:"ENABLE_CLOUDWATCH" default:"false"`
	MetricsAddr      string `envconfig:"METRICS_ADDR" default:":9090"`
}

// LockTTL is the advisory lock lifetime for one run.
func (c *Config) LockTTL() time.Duration {
	return c.Job.RunDeadline + c.Lock.TTLGrace
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
