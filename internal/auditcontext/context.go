// Package auditcontext carries request metadata captured by the audit trail.
package auditcontext

import (
	"context"
	"strings"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	ipAddressKey
	userAgentKey
)

// WithRequestID stores the request identifier for audit records.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request identifier, or empty.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithIPAddress stores the client address for audit records.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey, ip)
}

// IPAddress returns the client address, or empty.
func IPAddress(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(ipAddressKey).(string); ok {
		return value
	}
	return ""
}

// WithUserAgent stores the client user agent for audit records.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// UserAgent returns the client user agent, or empty.
func UserAgent(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(userAgentKey).(string); ok {
		return value
	}
	return ""
}
