// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/taskhive/taskhive/pkg/contextkeys"
//   ctx = contextkeys.WithClaims(ctx, claims)
//   claims := ctx.Value(contextkeys.ClaimsKey).(*session.AccessClaims)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ClaimsKey contains *session.AccessClaims
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, permission middleware
	// Type: *session.AccessClaims
	ClaimsKey Key = "access_claims"

	// UserIDKey contains the authenticated user's id
	// Set by: middleware.Authenticate after token validation
	// Used by: Logger, audit trail, user-scoped operations
	// Type: int64
	UserIDKey Key = "user_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithClaims adds verified access-token claims to the context
func WithClaims(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// WithUserID adds the authenticated user id to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// UserID extracts the authenticated user id, reporting whether one is set
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

// RequestID extracts the request id, or empty when unset
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
