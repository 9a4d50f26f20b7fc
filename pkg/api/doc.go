// Package api provides the HTTP API server for taskhive.
//
// # Overview
//
// The server mounts three route groups on a gorilla/mux router:
//
//   - /auth: registration, login, token refresh, password reset, Google
//     sign-in. Public, gated by the throttling guard rather than by tokens.
//   - /workspaces: workspace, membership, and invitation management.
//     Requires a Bearer access token; workspace-scoped routes pass through
//     permission middleware.
//   - /me: the authenticated user's own resources.
//
// Handlers translate service errors into HTTP statuses and never leak
// which half of a credential pair was wrong.
//
// # Related Packages
//
//   - pkg/accounts, pkg/workspaces: the services behind the handlers
//   - pkg/middleware: authentication and permission middleware
//   - pkg/httputil: request/response helpers
package api
