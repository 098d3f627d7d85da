package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"pantrynotify/internal/config"
	"pantrynotify/internal/types"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Security:    config.SecurityConfig{CorsAllowedOrigins: []string{"https://app.pantry.test"}},
		Job:         config.JobConfig{RunDeadline: time.Minute},
		Build:       config.BuildInfo{Version: "1.2.3"},
	}
}

type stubAuthenticator struct {
	tokens map[string]types.Actor
	err    error
}

func (a *stubAuthenticator) ResolveToken(_ context.Context, token string) (*types.Actor, error) {
	if a.err != nil {
		return nil, a.err
	}
	actor, ok := a.tokens[token]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid authentication token", nil)
	}
	return &actor, nil
}

type recordedRequest struct {
	method, endpoint, status string
}

type stubMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *stubMetrics) RecordRequest(method, endpoint, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, endpoint, status})
}

// newTestServer mounts a protected echo route that reports the resolved actor.
func newTestServer(t *testing.T, opts ...func(*Server)) (*Server, *bytes.Buffer) {
	t.Helper()
	logger, buf := testLogger()
	s, err := NewServer(testConfig(), logger)
	require.NoError(t, err)
	s.Authenticator = &stubAuthenticator{tokens: map[string]types.Actor{
		"good-token": {ID: "service", Type: types.ActorServiceRole},
	}}
	s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
		r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
			actor, _ := types.GetActor(r.Context())
			JSON(w, r, http.StatusOK, map[string]string{"actor": string(actor.Type), "request_id": types.GetRequestID(r.Context())})
		})
		r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})
	for _, o := range opts {
		o(s)
	}
	s.MountRoutes()
	return s, buf
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.RunErrorResponse {
	t.Helper()
	var resp types.RunErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}
