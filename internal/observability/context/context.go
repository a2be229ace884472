// Package obscontext carries request-scoped correlation identifiers used by
// logging and tracing. Values are stored under unexported keys so only this
// package can write them.
package obscontext

import (
	"context"
	"strings"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	orgIDKey
	actorKey
)

type actor struct {
	Type string
	ID   string
}

// WithRequestID stores the request identifier in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier, or empty.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithOrgID stores the organization identifier used for log correlation.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFromContext returns the organization identifier, or empty.
func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(orgIDKey).(string); ok {
		return value
	}
	return ""
}

// WithActor stores the acting principal for log correlation.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	actorType = strings.TrimSpace(actorType)
	actorID = strings.TrimSpace(actorID)
	if actorType == "" && actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor{Type: actorType, ID: actorID})
}

// ActorFromContext returns the acting principal type and id, or empty strings.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(actorKey).(actor); ok {
		return value.Type, value.ID
	}
	return "", ""
}
