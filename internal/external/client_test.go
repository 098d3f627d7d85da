package external

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrynotify/internal/types"
)

func noopSleep(time.Duration) {}

func newTestClient(t *testing.T, policy RetryPolicy) *BaseClient {
	t.Helper()
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-"+t.Name(), policy, "pantrynotify-test/1.0", WithSleepFunc(noopSleep))
}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond}
}

func TestDo_SetsHeaders(t *testing.T) {
	var gotUA, gotReqID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := types.WithRequestID(context.Background(), "req-42")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	resp, err := newTestClient(t, fastPolicy(0)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "pantrynotify-test/1.0", gotUA)
	assert.Equal(t, "req-42", gotReqID)
}

func TestDo_RetriesServerErrorsAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	var lastBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody = string(b)
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader(`{"a":1}`))
	resp, err := newTestClient(t, fastPolicy(2)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, `{"a":1}`, lastBody)
}

func TestDo_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorCode
	}{
		{"server error", http.StatusInternalServerError, types.ErrCodeUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, types.ErrCodeUpstreamRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
			resp, err := newTestClient(t, fastPolicy(2)).Do(req)
			assert.Nil(t, resp)

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.want, appErr.Code)
			assert.Equal(t, types.KindDelivery, types.KindOf(err))
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	resp, err := newTestClient(t, fastPolicy(2)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_TimeoutMapsToUpstreamTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err := newTestClient(t, fastPolicy(2)).Do(req)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamTimeout, appErr.Code)
}

func TestDo_OpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "test-open",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	client := NewBaseClientWithBreaker(&http.Client{}, breaker, fastPolicy(0), "", WithSleepFunc(noopSleep))

	for range 2 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		_, _ = client.Do(req)
	}
	before := calls.Load()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	_, err := client.Do(req)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
	assert.Equal(t, before, calls.Load(), "open breaker must not reach the server")
}

func TestDo_RespectsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewBaseClient(&http.Client{}, "retry-after", RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 10 * time.Second}, "",
		WithSleepFunc(func(d time.Duration) { slept = append(slept, d) }))

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestComputeBackoffWithinBounds(t *testing.T) {
	c := &BaseClient{retryPolicy: RetryPolicy{MinWait: 100 * time.Millisecond, MaxWait: time.Second}}
	for attempt := range 6 {
		d := c.computeBackoff(attempt, nil)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}
