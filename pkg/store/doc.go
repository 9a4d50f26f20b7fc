// Package store defines the narrow repository interfaces the trust core
// consumes and provides their PostgreSQL implementation.
//
// # Overview
//
// The core never talks to the database directly; each component declares the
// smallest interface it needs (UserStore, MembershipStore, ...) and the
// Postgres type satisfies all of them over a single *sql.DB. Service-level
// tests substitute hand-written fakes.
//
// # Soft Deletion
//
// Workspaces and memberships are soft-deleted (deleted_at timestamp) to
// preserve the audit trail. Read paths exclude soft-deleted rows; a re-added
// member gets their old row restored rather than a duplicate.
//
// # Related Packages
//
//   - pkg/authz: consumes UserStore, WorkspaceStore, MembershipStore
//   - pkg/session: consumes RefreshTokenStore
//   - pkg/throttle: consumes AttemptStore
package store
