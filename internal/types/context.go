package types

import "context"

type ContextKey string

const (
	CtxActorID   ContextKey = "ctx_actor_id"
	CtxRequestID ContextKey = "ctx_request_id"
)

const (
	// DefaultActorID is attributed to mutations that are not tied to a
	// host-application actor, e.g. the lifecycle engine cron.
	DefaultActorID = "system"
)

// GetActorID returns the acting user id from the context
func GetActorID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxActorID).(string); ok && id != "" {
		return id
	}
	return DefaultActorID
}

// GetRequestID returns the request id from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxRequestID).(string); ok {
		return id
	}
	return ""
}
