// Package telemetry exposes run and HTTP metrics in Prometheus format for the
// long-running entry points (cmd/api and the cron daemon). Serverless
// invocations report to CloudWatch instead.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pantrynotify/internal/types"
)

const namespace = "pantrynotify"

// PrometheusMetrics implements expiry.Metrics and core.MetricsCollector.
type PrometheusMetrics struct {
	gatherer prometheus.Gatherer

	runs            *prometheus.CounterVec
	runFailures     *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	ingredients     prometheus.Counter
	emailsSent      *prometheus.CounterVec
	emailErrors     *prometheus.CounterVec
	logErrors       prometheus.Counter
	alreadyNotified prometheus.Counter
	lastSuccess     prometheus.Gauge

	sends       *prometheus.CounterVec
	sendLatency *prometheus.HistogramVec

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewPrometheusMetrics registers all collectors on reg. A nil reg uses a fresh
// registry, which keeps tests isolated from the global default.
func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &PrometheusMetrics{
		gatherer: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed expiry notification runs.",
		}, []string{"trigger", "mode"}),
		runFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Runs that ended with a fatal error.",
		}, []string{"trigger", "code"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"trigger"}),
		ingredients: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiring_ingredients_total",
			Help:      "Ingredients found inside the notification window.",
		}),
		emailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Digests delivered or simulated.",
		}, []string{"mode"}),
		emailErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_errors_total",
			Help:      "Digests that failed to deliver.",
		}, []string{"mode"}),
		logErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_log_errors_total",
			Help:      "Notification log rows that could not be written.",
		}),
		alreadyNotified: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "already_notified_total",
			Help:      "Ingredients suppressed by dedup.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last run that completed without a fatal error.",
		}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_sends_total",
			Help:      "Send attempts per email provider.",
		}, []string{"provider", "outcome"}),
		sendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_send_duration_seconds",
			Help:      "Latency of a single provider send.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "endpoint", "status"}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordRun records a completed run.
func (m *PrometheusMetrics) RecordRun(_ context.Context, trigger types.Trigger, result *types.RunResult, duration time.Duration) {
	if result == nil {
		return
	}
	mode := string(result.Mode)
	m.runs.WithLabelValues(string(trigger), mode).Inc()
	m.runDuration.WithLabelValues(string(trigger)).Observe(duration.Seconds())
	m.ingredients.Add(float64(result.ExpiringIngredients))
	m.emailsSent.WithLabelValues(mode).Add(float64(result.EmailsSent))
	m.emailErrors.WithLabelValues(mode).Add(float64(result.EmailErrors))
	m.logErrors.Add(float64(result.LogErrors))
	m.alreadyNotified.Add(float64(result.AlreadyNotified))
	m.lastSuccess.Set(float64(result.Timestamp.Unix()))
}

// RecordRunFailure records a run that returned a fatal error.
func (m *PrometheusMetrics) RecordRunFailure(_ context.Context, trigger types.Trigger, code types.ErrorCode) {
	m.runFailures.WithLabelValues(string(trigger), string(code)).Inc()
}

// RecordSend records one provider call.
func (m *PrometheusMetrics) RecordSend(_ context.Context, provider string, ok bool, latency time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.sends.WithLabelValues(provider, outcome).Inc()
	m.sendLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordRequest records one HTTP request. endpoint should be the route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *PrometheusMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requests.WithLabelValues(method, endpoint, status).Inc()
	m.requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
