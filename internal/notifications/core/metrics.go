package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"pantrynotify/internal/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRunMetrics emits run and send metrics to CloudWatch. Metric
// failures are logged and never surface to the job.
//
// Metrics emitted:
//   - RunCompleted, RunDuration, ExpiringIngredients, EmailsSent, EmailErrors,
//     LogErrors, AlreadyNotified: Dims {Mode, Trigger}, once per run
//   - RunFailed: Dims {Trigger}
//   - APILatency / ExternalAPIFailure: Dims {Provider}, per send
type CloudWatchRunMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchRunMetrics publishes under namespace, or
// types.MetricNamespace when namespace is empty.
func NewCloudWatchRunMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRunMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchRunMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func count(name string, v int, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(v)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

// RecordRun emits the per-run summary as one PutMetricData call.
func (m *CloudWatchRunMetrics) RecordRun(ctx context.Context, trigger types.Trigger, result *types.RunResult, duration time.Duration) {
	if result == nil {
		return
	}
	dims := []cwtypes.Dimension{
		dim(types.DimMode, string(result.Mode)),
		dim(types.DimTrigger, string(trigger)),
	}
	data := []cwtypes.MetricDatum{
		count(types.MetricRunCompleted, 1, dims),
		count(types.MetricExpiringIngredients, result.ExpiringIngredients, dims),
		count(types.MetricEmailsSent, result.EmailsSent, dims),
		count(types.MetricEmailErrors, result.EmailErrors, dims),
		count(types.MetricLogErrors, result.LogErrors, dims),
		count(types.MetricAlreadyNotified, result.AlreadyNotified, dims),
		{
			MetricName: aws.String(types.MetricRunDuration),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	}
	m.put(ctx, data, "run")
}

// RecordRunFailure counts a run that ended with a fatal error.
func (m *CloudWatchRunMetrics) RecordRunFailure(ctx context.Context, trigger types.Trigger, code types.ErrorCode) {
	m.put(ctx, []cwtypes.MetricDatum{
		count(types.MetricRunFailed, 1, []cwtypes.Dimension{dim(types.DimTrigger, string(trigger))}),
	}, "run_failure", "code", string(code))
}

// RecordSend emits provider latency, plus a failure count when ok is false.
func (m *CloudWatchRunMetrics) RecordSend(ctx context.Context, provider string, ok bool, latency time.Duration) {
	dims := []cwtypes.Dimension{dim(types.DimProvider, provider)}
	data := []cwtypes.MetricDatum{{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(latency.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: dims,
	}}
	if !ok {
		data = append(data, count(types.MetricExternalAPIFailure, 1, dims))
	}
	m.put(ctx, data, "send", "provider", provider)
}

func (m *CloudWatchRunMetrics) put(ctx context.Context, data []cwtypes.MetricDatum, kind string, logArgs ...any) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		args := append([]any{"kind", kind, "error", err.Error()}, logArgs...)
		m.logger.Error("failed to record metric", args...)
	}
}
