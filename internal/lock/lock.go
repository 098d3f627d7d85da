// Package lock provides the cross-process mutex that keeps two notification
// runs from overlapping. Each acquisition gets a fresh token and release is a
// compare-and-delete on that token, so a run that outlives its TTL cannot
// drop the lock of the run that replaced it.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lease is a held lock.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Locker is implemented by PostgresLocker and RedisLocker. TryAcquire
// returns a nil Lease without error when another holder owns key.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

func newToken() string {
	return uuid.NewString()
}
