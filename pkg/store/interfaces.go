package store

import (
	"context"
	"errors"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// ErrNotFound is returned when a requested row does not exist (or is
// soft-deleted, for reads that exclude soft-deleted rows).
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a uniqueness constraint would be violated.
var ErrConflict = errors.New("store: conflict")

// UserStore provides principal lookups and mutations.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
}

// WorkspaceStore provides workspace lookups and mutations. Reads exclude
// soft-deleted workspaces.
type WorkspaceStore interface {
	GetWorkspaceByID(ctx context.Context, id int64) (*Workspace, error)
	CreateWorkspace(ctx context.Context, w *Workspace) error
	UpdateWorkspace(ctx context.Context, w *Workspace) error
	SoftDeleteWorkspace(ctx context.Context, id int64, now time.Time) error
}

// MembershipStore provides workspace membership rows. GetMember excludes
// soft-deleted rows; RestoreMember reactivates a previously removed member.
type MembershipStore interface {
	GetMember(ctx context.Context, userID, workspaceID int64) (*WorkspaceMember, error)
	ListMembers(ctx context.Context, workspaceID int64) ([]*WorkspaceMember, error)
	CreateMember(ctx context.Context, m *WorkspaceMember) error
	UpdateMemberRole(ctx context.Context, userID, workspaceID int64, role authz.WorkspaceRole) error
	SoftDeleteMember(ctx context.Context, userID, workspaceID int64, now time.Time) error
	RestoreMember(ctx context.Context, userID, workspaceID int64, role authz.WorkspaceRole) error
}

// RefreshTokenStore persists the refresh-token chain. RevokeToken is a
// conditional update (only un-revoked rows are affected) so concurrent
// rotations of the same token resolve to exactly one winner.
type RefreshTokenStore interface {
	CreateToken(ctx context.Context, t *RefreshToken) error
	// GetTokenByHash returns the row regardless of revocation or expiry so
	// callers can distinguish replay from garbage internally.
	GetTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	// RevokeToken sets revoked_at iff it is still null. Returns true when
	// this call performed the revocation.
	RevokeToken(ctx context.Context, id int64, now time.Time) (bool, error)
	// RevokeAllForUser revokes every active token for the user and returns
	// the number of rows revoked.
	RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	// DeleteExpiredBefore removes rows whose expiry precedes the cutoff.
	// Retention hygiene only; correctness never depends on it.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptStore appends and counts login/reset attempt rows. Rows are never
// mutated.
type AttemptStore interface {
	RecordLoginAttempt(ctx context.Context, a *LoginAttempt) error
	CountFailedLogins(ctx context.Context, identifier string, since time.Time) (int, error)
	RecordResetAttempt(ctx context.Context, a *ResetAttempt) error
	CountResetAttempts(ctx context.Context, identifier string, since time.Time) (int, error)
	CountResetAttemptsByIP(ctx context.Context, ip string, since time.Time) (int, error)
}

// InvitationStore persists workspace invitations.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitationsByEmail(ctx context.Context, email string) ([]*Invitation, error)
	MarkInvitationAccepted(ctx context.Context, id, userID int64, now time.Time) error
	DeleteInvitation(ctx context.Context, id int64) error
	DeleteExpiredInvitations(ctx context.Context, cutoff time.Time) (int64, error)
}

// RolePermissionStore maintains the denormalized role-permission mirror.
type RolePermissionStore interface {
	ReplaceRolePermissions(ctx context.Context, rows []RolePermission) error
	ListRolePermissions(ctx context.Context) ([]RolePermission, error)
}
