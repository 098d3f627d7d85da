package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pantrynotify/internal/expiry"
	"pantrynotify/internal/types"
)

type mockJob struct {
	mock.Mock
}

func (m *mockJob) Run(ctx context.Context, opts expiry.RunOptions) (*types.RunResult, error) {
	args := m.Called(types.GetTrigger(ctx), opts)
	res, _ := args.Get(0).(*types.RunResult)
	return res, args.Error(1)
}

func intPtr(v int) *int { return &v }

func newTestHandler(job *mockJob) *Handler {
	h := NewHandler(job, slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return h
}

func result() *types.RunResult {
	return &types.RunResult{
		Timestamp:           time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		ExpiringIngredients: 1,
		UsersToNotify:       1,
		EmailsSent:          1,
		Mode:                types.ModeLive,
		DaysAhead:           3,
	}
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}

func TestHandle_Payloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		trigger types.Trigger
		opts    expiry.RunOptions
	}{
		{"empty", ``, types.TriggerScheduled, expiry.RunOptions{}},
		{"null", `null`, types.TriggerScheduled, expiry.RunOptions{}},
		{"bare request", `{"daysAhead":5,"userId":"u-1"}`, types.TriggerScheduled, expiry.RunOptions{DaysAhead: intPtr(5), UserID: "u-1"}},
		{"manual flag", `{"manualTrigger":true,"testMode":true}`, types.TriggerScheduled, expiry.RunOptions{ManualTrigger: true, TestMode: true}},
		{
			"eventbridge without detail",
			`{"version":"0","id":"e1","detail-type":"Scheduled Event","source":"aws.events","detail":{}}`,
			types.TriggerScheduled, expiry.RunOptions{},
		},
		{
			"eventbridge with detail",
			`{"version":"0","id":"e2","detail-type":"Scheduled Event","source":"aws.events","detail":{"daysAhead":7}}`,
			types.TriggerScheduled, expiry.RunOptions{DaysAhead: intPtr(7)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &mockJob{}
			job.On("Run", tt.trigger, tt.opts).Return(result(), nil).Once()

			resp, err := newTestHandler(job).Handle(context.Background(), json.RawMessage(tt.payload))

			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
			body := decodeBody(t, resp.Body)
			assert.Equal(t, true, body["success"])
			job.AssertExpectations(t)
		})
	}
}

func TestHandle_RejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		code    types.ErrorCode
	}{
		{"not json", `daysAhead=3`, types.ErrCodeValidationInvalidJSON},
		{"unknown field", `{"days":3}`, types.ErrCodeValidationInvalidJSON},
		{"days out of range", `{"daysAhead":0}`, types.ErrCodeValidationDaysAhead},
		{"user id too long", `{"userId":"` + strings.Repeat("x", 129) + `"}`, types.ErrCodeValidationUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &mockJob{}

			resp, err := newTestHandler(job).Handle(context.Background(), json.RawMessage(tt.payload))

			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp.Body)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, string(tt.code), body["code"])
			job.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_JobErrorIsReportedInEnvelope(t *testing.T) {
	job := &mockJob{}
	job.On("Run", types.TriggerScheduled, expiry.RunOptions{}).
		Return(nil, types.NewAppError(types.ErrCodeConflictRunInProgress, "another run is in progress", nil))

	resp, err := newTestHandler(job).Handle(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "another run is in progress", body["error"])
	assert.Equal(t, "2025-06-01T08:00:00Z", body["timestamp"])
	assert.NotContains(t, body, "stack")
}

func TestHandle_UnexpectedErrorHidesMessage(t *testing.T) {
	job := &mockJob{}
	job.On("Run", types.TriggerScheduled, expiry.RunOptions{}).Return(nil, errors.New("pq: connection reset"))
	h := newTestHandler(job)
	h.exposeStack = true

	resp, err := h.Handle(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "an unexpected error occurred", body["error"])
	assert.Contains(t, body["stack"], "pq: connection reset")
}

func TestRunLocal(t *testing.T) {
	job := &mockJob{}
	job.On("Run", types.TriggerScheduled, expiry.RunOptions{TestMode: true}).Return(result(), nil)
	var out bytes.Buffer

	err := runLocal(context.Background(), newTestHandler(job), strings.NewReader(`{"testMode":true}`), &out)

	require.NoError(t, err)
	var printed struct {
		StatusCode int             `json:"statusCode"`
		Body       json.RawMessage `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, http.StatusOK, printed.StatusCode)
	body := decodeBody(t, string(printed.Body))
	assert.Equal(t, true, body["success"])
}

func TestRunLocal_FailureReturnsError(t *testing.T) {
	job := &mockJob{}
	var out bytes.Buffer

	err := runLocal(context.Background(), newTestHandler(job), strings.NewReader(`{"daysAhead":-1}`), &out)

	require.Error(t, err)
	assert.Contains(t, out.String(), `"statusCode": 400`)
}
