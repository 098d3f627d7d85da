package telemetry

import (
	"context"
	"time"

	"pantrynotify/internal/types"
)

// RunRecorder is the run metrics surface shared by the Prometheus and
// CloudWatch sinks.
type RunRecorder interface {
	RecordRun(ctx context.Context, trigger types.Trigger, result *types.RunResult, duration time.Duration)
	RecordRunFailure(ctx context.Context, trigger types.Trigger, code types.ErrorCode)
	RecordSend(ctx context.Context, provider string, ok bool, latency time.Duration)
}

// Fanout forwards every measurement to each non-nil recorder in order.
type Fanout []RunRecorder

// NewFanout drops nil recorders.
func NewFanout(recorders ...RunRecorder) Fanout {
	out := make(Fanout, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (f Fanout) RecordRun(ctx context.Context, trigger types.Trigger, result *types.RunResult, duration time.Duration) {
	for _, r := range f {
		r.RecordRun(ctx, trigger, result, duration)
	}
}

func (f Fanout) RecordRunFailure(ctx context.Context, trigger types.Trigger, code types.ErrorCode) {
	for _, r := range f {
		r.RecordRunFailure(ctx, trigger, code)
	}
}

func (f Fanout) RecordSend(ctx context.Context, provider string, ok bool, latency time.Duration) {
	for _, r := range f {
		r.RecordSend(ctx, provider, ok, latency)
	}
}
