package db

import (
	"context"
	"time"

	"pantrynotify/internal/types"
)

// NotificationLogRepository appends to and reads from notification_logs. Writes
// go through the log_notification function so the row shape stays owned by
// the database.
type NotificationLogRepository struct {
	db DBTX
}

func NewNotificationLogRepository(db DBTX) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Log appends one entry. sent_at is assigned by the database.
func (r *NotificationLogRepository) Log(ctx context.Context, e types.NotificationLogEntry) error {
	_, err := r.db.Exec(ctx,
		`SELECT log_notification($1, $2, $3, $4, $5)`,
		e.UserID,
		e.IngredientID,
		e.NotificationType,
		e.EmailSent,
		e.ErrorMessage,
	)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeNotificationLogFailure, "failed to write notification log", err,
			map[string]any{"ingredient_id": e.IngredientID})
	}
	return nil
}

// SentSince returns successful entries for the given users with sent_at >=
// since. Used to suppress repeat notifications.
func (r *NotificationLogRepository) SentSince(ctx context.Context, userIDs []string, since time.Time) ([]types.NotificationLogEntry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT user_id::text, ingredient_id::text, notification_type, sent_at
		 FROM notification_logs
		 WHERE email_sent AND user_id::text = ANY($1) AND sent_at >= $2`,
		userIDs,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreQuery, "failed to query notification logs", err)
	}
	defer rows.Close()

	var entries []types.NotificationLogEntry
	for rows.Next() {
		e := types.NotificationLogEntry{EmailSent: true}
		if err := rows.Scan(&e.UserID, &e.IngredientID, &e.NotificationType, &e.SentAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeStoreQuery, "failed to scan notification log", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreQuery, "error iterating notification logs", err)
	}
	return entries, nil
}
