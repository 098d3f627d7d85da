package core

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrynotify/internal/types"
)

func TestNewServer_RequiresConfigAndLogger(t *testing.T) {
	logger, _ := testLogger()

	_, err := NewServer(nil, logger)
	assert.Error(t, err)

	_, err = NewServer(testConfig(), nil)
	assert.Error(t, err)

	s, err := NewServer(testConfig(), logger)
	require.NoError(t, err)
	assert.NotNil(t, s.Validator)
	assert.NotNil(t, s.Router())
}

func TestServer_ShutdownRunsClosersInReverse(t *testing.T) {
	logger, _ := testLogger()
	s, err := NewServer(testConfig(), logger)
	require.NoError(t, err)

	var order []string
	s.OnShutdown(func() { order = append(order, "pool") })
	s.OnShutdown(func() { order = append(order, "redis") })

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, []string{"redis", "pool"}, order)
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		header string
		code   types.ErrorCode
	}{
		{"no header", "", types.ErrCodeAuthTokenMissing},
		{"wrong scheme", "Basic Zm9vOmJhcg==", types.ErrCodeAuthTokenMissing},
		{"unknown token", "Bearer nope", types.ErrCodeAuthTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/echo", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			resp := decodeError(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestAuth_ResolverFailureIsInvalidToken(t *testing.T) {
	s, buf := newTestServer(t, func(s *Server) {
		s.Authenticator = &stubAuthenticator{err: io.ErrUnexpectedEOF}
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, decodeError(t, rec).Code)
	assert.Contains(t, buf.String(), "token resolution failed")
}

func TestAuth_InjectsActorAndRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/echo", nil)
	req.Header.Set("Authorization", "bearer good-token")
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "service_role", body["actor"])
	assert.Equal(t, "req-42", body["request_id"])
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.2.3"}`, rec.Body.String())
}

func TestMetricsEndpointMountedOnlyWhenConfigured(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.ErrCodeNotFoundRoute, decodeError(t, rec).Code)

	s, _ = newTestServer(t, func(s *Server) {
		s.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pantrynotify_runs_total 1\n")
		})
	})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pantrynotify_runs_total")
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, types.ErrCodeMethodNotAllowed, decodeError(t, rec).Code)
}

func TestRecoverer_WritesEnvelopeAndLogsStack(t *testing.T) {
	s, buf := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/panic", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, types.ErrCodeInternalUnexpected, resp.Code)
	assert.NotEmpty(t, resp.RequestID)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRequestLogger_RedactsAuthorization(t *testing.T) {
	s, buf := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "good-token")
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	m := &stubMetrics{}
	s, _ := newTestServer(t, func(s *Server) { s.Metrics = m })

	req := httptest.NewRequest(http.MethodPost, "/v1/echo", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/no/such/path/123", nil))

	require.Len(t, m.requests, 2)
	assert.Equal(t, recordedRequest{"POST", "/v1/echo", "200"}, m.requests[0])
	assert.Equal(t, recordedRequest{"GET", "unmatched", "401"}, m.requests[1])
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/echo", nil)
	req.Header.Set("Origin", "https://app.pantry.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.pantry.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompression_GzipsLargeBodies(t *testing.T) {
	s, _ := newTestServer(t, func(s *Server) {
		s.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, strings.Repeat("pantrynotify_runs_total 1\n", 200))
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "pantrynotify_runs_total"))
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("BEARER  abc "))
	assert.Empty(t, extractBearerToken("Bearer"))
	assert.Empty(t, extractBearerToken("Token abc"))
}
