package types

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	triggerKey   contextKey = "trigger"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Trigger identifies what started a notification run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

// WithTrigger stores the run trigger in the context so log lines emitted deep
// in the job can be attributed.
func WithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, triggerKey, t)
}

// GetTrigger returns the trigger recorded in ctx, or TriggerScheduled.
func GetTrigger(ctx context.Context) Trigger {
	if t, ok := ctx.Value(triggerKey).(Trigger); ok {
		return t
	}
	return TriggerScheduled
}

// ActorType distinguishes how a caller authenticated.
type ActorType string

const (
	ActorServiceRole ActorType = "service_role"
	ActorAdminKey    ActorType = "admin_key"
)

// Actor is the authenticated caller of the manual trigger endpoint.
type Actor struct {
	ID   string    `json:"id"`
	Type ActorType `json:"type"`
}

const actorKey contextKey = "actor"

// WithActor stores the authenticated actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// GetActor returns the actor stored in ctx, if any.
func GetActor(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
