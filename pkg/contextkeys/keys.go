// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// packages agree on key identity without importing each other.
//
// USAGE PATTERN:
//
//	import "github.com/solarpro/erp/pkg/contextkeys"
//	ctx = contextkeys.WithRequestID(ctx, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *auth.Identity
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: auth.Accessor, profile routes
	// Type: *auth.Identity
	IdentityKey Key = "identity"

	// RoleKey contains the caller's rbac.Role after a gate admitted the request
	// Set by: rbac.Gate.Require (pkg/rbac/middleware.go)
	// Type: rbac.Role
	RoleKey Key = "role"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: auth.WithIdentity after the session token validated
	// Used by: Logger, audit trail
	// Type: string
	UserIDKey Key = "user_id"

	// ClientIPKey contains the caller address after proxy hops were resolved
	// Set by: httputil.ClientIPResolver.Middleware
	// Used by: rate limiting, audit trail
	// Type: string
	ClientIPKey Key = "client_ip"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: audit.Middleware (pkg/audit/middleware.go)
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithClientIP adds the resolved caller address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP retrieves the resolved caller address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}
