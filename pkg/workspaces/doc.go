// Package workspaces manages workspace lifecycle, membership, and
// invitations, with role-hierarchy enforcement on every member mutation.
//
// # Overview
//
// An actor may grant, change, or revoke only roles strictly below their own;
// a global admin bypasses the hierarchy entirely. Removals soft-delete the
// membership row so rejoin history survives, and a removed member loses all
// workspace access immediately.
//
// Every successful mutation ends in a bump-and-broadcast invalidation on the
// cache bus, so cached membership and workspace lookups anywhere in the
// fleet can never outlive the change.
//
// # Related Packages
//
//   - pkg/authz: role ordering and the hierarchy check
//   - pkg/cache: the invalidation bus
//   - pkg/store: workspace, membership, and invitation rows
package workspaces
