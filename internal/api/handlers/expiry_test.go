package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
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

func newRouter(h *ExpiryHandler, actor *types.Actor) http.Handler {
	r := chi.NewRouter()
	if actor != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(types.WithActor(req.Context(), *actor)))
			})
		})
	}
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/expiry/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleResult() *types.RunResult {
	return &types.RunResult{
		Timestamp:           time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
		ExpiringIngredients: 3,
		UsersToNotify:       2,
		EmailsSent:          2,
		DateRange:           types.DateRange{From: "2025-06-01", To: "2025-06-04"},
		Mode:                types.ModeLive,
		DaysAhead:           3,
	}
}

func TestHandleRun_Success(t *testing.T) {
	job := &mockJob{}
	job.On("Run", types.TriggerManual, expiry.RunOptions{DaysAhead: intPtr(3), ManualTrigger: true}).Return(sampleResult(), nil)
	h := NewExpiryHandler(job, nil, nil, false)

	rec := post(t, newRouter(h, nil), `{"daysAhead":3,"manualTrigger":true}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Sent 2 of 2 expiry digests for 3 ingredients", body["message"])
	results := body["results"].(map[string]any)
	assert.Equal(t, float64(3), results["expiringIngredients"])
	assert.Equal(t, float64(2), results["usersToNotify"])
	assert.Equal(t, float64(2), results["emailsSent"])
	assert.Equal(t, float64(0), results["emailErrors"])
	assert.Equal(t, "live", results["mode"])
	assert.Equal(t, map[string]any{"from": "2025-06-01", "to": "2025-06-04"}, results["dateRange"])
	job.AssertExpectations(t)
}

func TestHandleRun_EmptyBodyUsesDefaults(t *testing.T) {
	job := &mockJob{}
	job.On("Run", types.TriggerManual, expiry.RunOptions{}).Return(&types.RunResult{
		DateRange: types.DateRange{From: "2025-06-01", To: "2025-06-04"},
	}, nil)
	h := NewExpiryHandler(job, nil, nil, false)

	rec := post(t, newRouter(h, nil), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No ingredients expiring between 2025-06-01 and 2025-06-04")
}

func TestHandleRun_TriggerFromActor(t *testing.T) {
	tests := []struct {
		name   string
		actor  types.Actor
		body   string
		want   types.Trigger
		manual bool
	}{
		{"service role schedule", types.Actor{Type: types.ActorServiceRole}, `{}`, types.TriggerScheduled, false},
		{"service role manual", types.Actor{Type: types.ActorServiceRole}, `{"manualTrigger":true}`, types.TriggerManual, true},
		{"operator", types.Actor{Type: types.ActorAdminKey}, `{}`, types.TriggerManual, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &mockJob{}
			job.On("Run", tt.want, expiry.RunOptions{ManualTrigger: tt.manual}).Return(sampleResult(), nil)
			h := NewExpiryHandler(job, nil, nil, false)

			rec := post(t, newRouter(h, &tt.actor), tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			job.AssertExpectations(t)
		})
	}
}

func TestHandleRun_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{"malformed", `{"daysAhead":`, types.ErrCodeValidationInvalidJSON},
		{"unknown field", `{"days":3}`, types.ErrCodeValidationInvalidJSON},
		{"wrong type", `{"testMode":"yes"}`, types.ErrCodeValidationInvalidJSON},
		{"zero days", `{"daysAhead":0}`, types.ErrCodeValidationDaysAhead},
		{"too many days", `{"daysAhead":400}`, types.ErrCodeValidationDaysAhead},
		{"user id too long", fmt.Sprintf(`{"userId":%q}`, strings.Repeat("x", 129)), types.ErrCodeValidationUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &mockJob{}
			h := NewExpiryHandler(job, nil, nil, false)

			rec := post(t, newRouter(h, nil), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp types.RunErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
			job.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleRun_JobErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"lock held", types.NewAppError(types.ErrCodeConflictRunInProgress, "an expiry run is already in progress", nil), http.StatusConflict},
		{"store failure", types.NewAppError(types.ErrCodeStoreQuery, "failed to query expiring ingredients", errors.New("timeout")), http.StatusInternalServerError},
		{"config", types.NewAppError(types.ErrCodeConfigInvalid, "ingredient store is not configured", nil), http.StatusInternalServerError},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &mockJob{}
			job.On("Run", types.TriggerManual, expiry.RunOptions{}).Return(nil, tt.err)
			h := NewExpiryHandler(job, nil, nil, false)

			rec := post(t, newRouter(h, nil), `{}`)

			assert.Equal(t, tt.status, rec.Code)
			var resp types.RunErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.False(t, resp.Timestamp.IsZero())
			assert.Empty(t, resp.Stack)
		})
	}
}

func TestHandleRun_ExposesStackWhenEnabled(t *testing.T) {
	job := &mockJob{}
	job.On("Run", types.TriggerManual, expiry.RunOptions{}).
		Return(nil, types.NewAppError(types.ErrCodeUserResolution, "failed to resolve users", errors.New("function missing")))
	h := NewExpiryHandler(job, nil, nil, true)

	rec := post(t, newRouter(h, nil), `{}`)

	var resp types.RunErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Stack, "function missing")
}
