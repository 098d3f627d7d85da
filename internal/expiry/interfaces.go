package expiry

import (
	"context"
	"time"

	"pantrynotify/internal/notifications/email"
	"pantrynotify/internal/types"
)

// IngredientStore reads ingredients by expiry range (db.IngredientRepository).
type IngredientStore interface {
	ListExpiring(ctx context.Context, q types.ExpiringQuery) ([]types.StoredIngredient, error)
}

// UserDirectory resolves notification-enabled users (db.UserDirectory).
type UserDirectory interface {
	UsersWithExpiringIngredients(ctx context.Context, daysAhead int) ([]types.UserContact, error)
}

// NotificationLog appends audit rows and answers dedup lookups
// (db.NotificationLogRepository).
type NotificationLog interface {
	Log(ctx context.Context, e types.NotificationLogEntry) error
	SentSince(ctx context.Context, userIDs []string, since time.Time) ([]types.NotificationLogEntry, error)
}

// DigestSender renders and delivers one digest (email.DigestSender).
type DigestSender interface {
	Send(ctx context.Context, to string, d email.Digest, referenceID string) (string, error)
	ProviderName() string
}

// JobHistorian records run start and finish (db.JobHistoryRepository).
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, jobErr error) error
}

// Metrics receives run and send measurements. Implementations must not
// block the run on sink failures.
type Metrics interface {
	RecordRun(ctx context.Context, trigger types.Trigger, result *types.RunResult, duration time.Duration)
	RecordRunFailure(ctx context.Context, trigger types.Trigger, code types.ErrorCode)
	RecordSend(ctx context.Context, provider string, ok bool, latency time.Duration)
}

// FailurePublisher forwards failed recipients for operator redrive.
type FailurePublisher interface {
	PublishFailure(ctx context.Context, msg types.DeliveryFailureMessage) error
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(context.Context, types.Trigger, *types.RunResult, time.Duration) {}
func (noopMetrics) RecordRunFailure(context.Context, types.Trigger, types.ErrorCode)          {}
func (noopMetrics) RecordSend(context.Context, string, bool, time.Duration)                    {}
