// Package middleware provides HTTP middleware for authentication and
// authorization.
//
// # Overview
//
// Authenticate validates the Bearer access token and places the verified
// claims and user id in the request context; RequirePermission then
// resolves a catalogued permission for the authenticated user, taking the
// workspace from the route's workspace_id variable for workspace-scoped
// permissions. Missing or invalid credentials are 401; a resolved denial is
// 403.
//
// # Usage Example
//
//	r := mux.NewRouter()
//	r.Use(middleware.Authenticate(tokens))
//	r.Handle("/workspaces/{workspace_id}/tasks",
//		middleware.RequirePermission(resolver, authz.PermissionCreateTask)(handler),
//	).Methods("POST")
//
// # Related Packages
//
//   - pkg/session: access-token parsing
//   - pkg/authz: permission resolution
package middleware
