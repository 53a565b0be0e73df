// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here to
// prevent typos and make key usage discoverable.
package contextkeys

import (
	"context"

	"github.com/grantcue/grantcue/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext.
	// Set by: middleware.AuthMiddleware
	// Required by: protected endpoints, rbac middleware
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request ID string.
	// Set by: HTTP middleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// AuditLoggerKey contains audit.Logger.
	// Set by: audit middleware
	AuditLoggerKey Key = "audit_logger"
)

// WithAuth stores the auth context for a request
func WithAuth(ctx context.Context, authCtx *auth.AuthContext) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// Auth returns the auth context, or nil if unset
func Auth(ctx context.Context) *auth.AuthContext {
	if authCtx, ok := ctx.Value(AuthKey).(*auth.AuthContext); ok {
		return authCtx
	}
	return nil
}

// WithRequestID stores the request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request ID, or "" if unset
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
