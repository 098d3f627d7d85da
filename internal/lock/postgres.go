package lock

import (
	"context"
	"time"
)

// LockRepository is the job_locks table surface (db.JobLockRepository).
type LockRepository interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

// PostgresLocker stores leases in job_locks. It is the default backend.
type PostgresLocker struct {
	repo     LockRepository
	newToken func() string
	now      func() time.Time
}

func NewPostgresLocker(repo LockRepository) *PostgresLocker {
	return &PostgresLocker{
		repo:     repo,
		newToken: newToken,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *PostgresLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := l.newToken()
	ok, err := l.repo.Acquire(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, err
	}
	return &Lease{Key: key, Token: token, ExpiresAt: l.now().Add(ttl)}, nil
}

func (l *PostgresLocker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	return l.repo.Release(ctx, lease.Key, lease.Token)
}

var _ Locker = (*PostgresLocker)(nil)
