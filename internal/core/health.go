package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pantrynotify/internal/types"
)

const healthCheckTimeout = 2 * time.Second

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// PingProbe adapts a types.HealthChecker (the pgx pool, a Redis client) to
// HealthProbe.
type PingProbe struct {
	ProbeName string
	Checker   types.HealthChecker
}

func (p PingProbe) Name() string { return p.ProbeName }

func (p PingProbe) Check(ctx context.Context) error { return p.Checker.Ping(ctx) }

// HandleHealth runs every probe concurrently under a 2s deadline. It returns
// 200 when all report healthy and 503 otherwise; a probe that has not
// answered by the deadline counts as unhealthy.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy"}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.HealthProbes))
	for _, p := range s.HealthProbes {
		go func(p HealthProbe) {
			var err error
			defer func() {
				if rvr := recover(); rvr != nil {
					err = fmt.Errorf("probe panicked: %v", rvr)
				}
				results <- result{name: p.Name(), err: err}
			}()
			err = p.Check(ctx)
		}(p)
	}

	resp.Components = make(map[string]componentStatus, len(s.HealthProbes))
	for _, p := range s.HealthProbes {
		resp.Components[p.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
	}

collect:
	for range s.HealthProbes {
		select {
		case res := <-results:
			if res.err != nil {
				resp.Components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
			} else {
				resp.Components[res.name] = componentStatus{Status: "healthy"}
			}
		case <-ctx.Done():
			break collect
		}
	}

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != "healthy" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}
	JSON(w, r, status, resp)
}
