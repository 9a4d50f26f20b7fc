package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/session"
)

// Authenticate validates the Bearer access token and stores the verified
// claims and user id in the request context.
func Authenticate(tokens *session.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorizedResponse(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorizedResponse(w, "invalid authorization header format")
				return
			}

			claims, err := tokens.ParseAccessToken(parts[1])
			if err != nil {
				unauthorizedResponse(w, "invalid or expired token")
				return
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				unauthorizedResponse(w, "invalid or expired token")
				return
			}

			ctx := contextkeys.WithClaims(r.Context(), claims)
			ctx = contextkeys.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts verified access-token claims from the request, or nil
// when the request was not authenticated.
func GetClaims(r *http.Request) *session.AccessClaims {
	claims, ok := r.Context().Value(contextkeys.ClaimsKey).(*session.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}

// RequirePermission resolves the permission for the authenticated user
// before admitting the request. For workspace-scoped permissions the
// workspace comes from the route's workspace_id variable.
func RequirePermission(resolver *authz.Resolver, permission authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := contextkeys.UserID(r.Context())
			if !ok {
				unauthorizedResponse(w, "authentication required")
				return
			}

			var workspaceID *int64
			if raw, ok := mux.Vars(r)["workspace_id"]; ok {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					http.Error(w, `{"error":"invalid workspace id"}`, http.StatusBadRequest)
					return
				}
				workspaceID = &id
			}

			allowed, err := resolver.HasPermission(r.Context(), userID, permission, workspaceID)
			if err != nil || !allowed {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
