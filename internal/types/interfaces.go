package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a Clock that always returns the same instant. Used by tools
// that replay a run for a given reference date.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// Logger defines the structured logging interface used by components that
// are not handed an *slog.Logger directly (metrics sinks, queue publishers).
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// HealthChecker is implemented by dependencies that can report liveness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
