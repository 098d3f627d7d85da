package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pantrynotify/internal/types"
)

func TestNotificationLogRepository_Log(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationLogRepository(db)
	ctx := context.Background()

	msg := "simulation mode"
	db.On("Exec", ctx, `SELECT log_notification($1, $2, $3, $4, $5)`,
		[]any{"u1", "i1", "expiry_soon", true, &msg}).
		Return(pgconn.NewCommandTag("SELECT 1"), nil)

	err := repo.Log(ctx, types.NotificationLogEntry{
		UserID:           "u1",
		IngredientID:     "i1",
		NotificationType: "expiry_soon",
		EmailSent:        true,
		ErrorMessage:     &msg,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestNotificationLogRepository_LogFailureIsLogError(t *testing.T) {
	db := new(mockDBTX)
	ctx := context.Background()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("permission denied"))

	err := NewNotificationLogRepository(db).Log(ctx, types.NotificationLogEntry{UserID: "u1", IngredientID: "i1"})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotificationLogFailure, appErr.Code)
	assert.Equal(t, "i1", appErr.Details["ingredient_id"])
	assert.Equal(t, types.KindLog, types.KindOf(err))
}

func TestNotificationLogRepository_SentSince(t *testing.T) {
	db := new(mockDBTX)
	repo := NewNotificationLogRepository(db)
	ctx := context.Background()
	since := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	sent := time.Date(2025, 5, 31, 8, 0, 0, 0, time.UTC)

	db.On("Query", ctx, mock.AnythingOfType("string"), []any{[]string{"u1", "u2"}, since}).
		Return(newMockRows([][]any{{"u1", "i1", "expiry_soon", sent}}), nil)

	entries, err := repo.SentSince(ctx, []string{"u1", "u2"}, since)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "expiry_soon", entries[0].NotificationType)
	assert.True(t, entries[0].EmailSent)
	assert.Equal(t, sent, entries[0].SentAt)
	db.AssertExpectations(t)
}

func TestNotificationLogRepository_SentSinceNoUsers(t *testing.T) {
	db := new(mockDBTX)
	entries, err := NewNotificationLogRepository(db).SentSince(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, entries)
	db.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}
