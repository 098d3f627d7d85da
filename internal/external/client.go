// Package external is the boundary between the notification job and
// third-party delivery APIs. Outbound HTTP goes through BaseClient, which
// applies circuit breaking and retries and maps failures onto the closed set
// of delivery error codes.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"pantrynotify/internal/types"
)

// RetryPolicy configures transport-level retries.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy retries 429/5xx twice with jittered backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    3 * time.Second,
	}
}

// BaseClient wraps an *http.Client with a gobreaker circuit breaker and a
// retry loop. Provider clients hold one each.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

// BaseClientOption configures a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep used between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient with its own named breaker. The breaker
// opens after more than five consecutive failures and half-opens after 30s.
func NewBaseClient(httpClient *http.Client, breakerName string, retryPolicy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewBaseClientWithBreaker(httpClient, cb, retryPolicy, userAgent, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient around a caller-supplied breaker.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], retryPolicy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	bc := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do sends req through the breaker, retrying 429 and 5xx responses. Any other
// response (including 4xx) is returned unchanged for the provider client to
// interpret; the caller closes the body. Exhausted retries, an open breaker,
// and transport failures return a *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if id := types.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Buffer the body so it can be replayed.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
		}
		req.Body.Close()
	}

	var (
		lastResp *http.Response
		lastErr  error
	)
	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		// A transport error after the context ended will not recover.
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(ctx, lastResp, lastErr)
}

// computeBackoff honours Retry-After (seconds or HTTP date) and otherwise
// returns jittered exponential backoff clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	p := c.retryPolicy
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, p.MaxWait)
			}
			if t, err := http.ParseTime(ra); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return p.MinWait
				}
				return min(wait, p.MaxWait)
			}
		}
	}

	ceiling := math.Min(float64(p.MinWait)*math.Pow(2, float64(attempt)), float64(p.MaxWait))
	floor := float64(p.MinWait)
	if ceiling <= floor {
		return p.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

func (c *BaseClient) mapError(ctx context.Context, resp *http.Response, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker is open", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "upstream request timed out", err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}
