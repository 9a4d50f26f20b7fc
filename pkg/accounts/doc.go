// Package accounts orchestrates registration, login, password reset, and
// Google sign-in on top of the session, throttle, and store packages.
//
// # Overview
//
// The package owns the order of checks on the login path: throttle gate
// first, then credential verification, then the email-verified gate, and
// only then token issuance. Every attempt is recorded after its outcome is
// known so the record reflects what actually happened.
//
// Failures are deliberately uninformative to the caller: bad email and bad
// password both yield ErrInvalidCredentials, and password-reset requests
// return the same response whether or not the address exists. Internally
// the distinctions are logged and counted.
//
// # Related Packages
//
//   - pkg/session: token issuance, rotation, revocation
//   - pkg/throttle: sliding-window gates on login and reset
//   - pkg/store: users and attempt rows
package accounts
