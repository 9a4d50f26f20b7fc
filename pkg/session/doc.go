// Package session implements token lifecycle security: stateless JWT access
// tokens, opaque refresh tokens, rotation, revocation, and replay detection.
//
// # Token Model
//
// Access tokens are short-lived HS256 JWTs minted by Tokens. Refresh tokens
// are opaque high-entropy secrets; only their SHA-256 hash is persisted.
// Tokens for one session form a strictly linear chain: every rotation
// revokes the presented token and issues a new row. Presenting an
// already-rotated token is a compromise signal, surfaced to the client as a
// plain authentication failure but counted and logged for monitoring.
//
// # Usage
//
//	pair, err := manager.Issue(ctx, user, session.RequestInfo{UserAgent: ua, IPAddress: ip})
//	pair, err = manager.Rotate(ctx, presentedRefreshToken, info)
//	err = manager.RevokeAll(ctx, userID) // password change, logout everywhere
//
// # Related Packages
//
//   - pkg/store: refresh-token persistence
//   - pkg/accounts: login flows calling Issue/Rotate/RevokeAll
package session
