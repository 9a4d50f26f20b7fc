// Package throttle implements sliding-window brute-force protection over
// the append-only attempt log.
//
// # Overview
//
// Windows are computed on read: an identifier is throttled when the count
// of matching attempts since (now - window) reaches the configured maximum.
// Nothing is ever mutated or expired; old rows simply age out of the
// window. Being throttled is a state, not an error, so the guard returns
// booleans and reserves errors for storage failures.
//
// Three independent limits are enforced:
//
//   - failed logins per identifier
//   - password-reset requests per identifier
//   - password-reset requests per source IP
//
// # Related Packages
//
//   - pkg/store: the attempt rows and count queries
//   - pkg/accounts: the login/reset flows gated by this guard
package throttle
