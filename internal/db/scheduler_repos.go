package db

import (
	"context"
	"time"

	"pantrynotify/internal/types"
)

// JobLockRepository implements a TTL advisory lock on the job_locks table.
// A row whose expires_at has passed may be taken over by any worker.
type JobLockRepository struct {
	db  DBTX
	now func() time.Time
}

func NewJobLockRepository(db DBTX) *JobLockRepository {
	return &JobLockRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Acquire reports whether workerID now holds lockID. Timestamps are computed
// here rather than with SQL interval arithmetic.
func (r *JobLockRepository) Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error) {
	now := r.now()
	tag, err := r.db.Exec(ctx,
		`INSERT INTO job_locks (id, worker_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET worker_id = EXCLUDED.worker_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE job_locks.expires_at < $3`,
		lockID,
		workerID,
		now,
		now.Add(ttl),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire job lock", err)
	}
	// 0 rows: another worker holds an unexpired lock.
	return tag.RowsAffected() > 0, nil
}

// Release deletes the lock only if workerID still owns it, so a run that
// outlived its TTL cannot drop a successor's lock.
func (r *JobLockRepository) Release(ctx context.Context, lockID string, workerID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM job_locks WHERE id = $1 AND worker_id = $2`,
		lockID,
		workerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release job lock", err)
	}
	return nil
}

// JobHistoryRepository records one row per run in job_history.
type JobHistoryRepository struct {
	db DBTX
}

func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// Start inserts a 'running' row and returns its id.
func (r *JobHistoryRepository) Start(ctx context.Context, jobType string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO job_history (job_type, started_at, status)
		 VALUES ($1, NOW(), 'running')
		 RETURNING id`,
		jobType,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start job history entry", err)
	}
	return id, nil
}

// Finish records the outcome. status is 'success' or 'failed'.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status string, items int, jobErr error) error {
	var errMsg *string
	if jobErr != nil {
		s := jobErr.Error()
		errMsg = &s
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE job_history
		 SET finished_at = NOW(), status = $2, items_count = $3, error = $4
		 WHERE id = $1`,
		id,
		status,
		items,
		errMsg,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "job history entry not found", nil)
	}
	return nil
}
