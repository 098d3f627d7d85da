package core

import (
	"context"
	"time"

	"pantrynotify/internal/types"
)

// Authenticator resolves a bearer token to an Actor (auth.AdminKeyVerifier).
// It returns auth_token_missing or auth_token_invalid AppErrors on failure.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// MetricsCollector records per-request telemetry (telemetry.PrometheusMetrics).
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// HealthProbe checks one critical dependency.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}
