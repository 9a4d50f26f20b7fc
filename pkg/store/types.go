package store

import (
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// User is an authenticated principal.
type User struct {
	ID            int64            `json:"id"`
	Email         string           `json:"email"`
	PasswordHash  string           `json:"-"`
	GlobalRole    authz.GlobalRole `json:"global_role"`
	EmailVerified bool             `json:"email_verified"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsAdmin reports whether the user holds the system-wide admin role.
func (u *User) IsAdmin() bool {
	return u.GlobalRole == authz.GlobalRoleAdmin
}

// Workspace is the single tenancy level of the system.
type Workspace struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// WorkspaceMember is the ternary user/workspace/role relation. Rows are
// soft-deleted on removal or leave, never hard-deleted.
type WorkspaceMember struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	WorkspaceID int64               `json:"workspace_id"`
	Role        authz.WorkspaceRole `json:"role"`
	InvitedBy   *int64              `json:"invited_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}

// RefreshToken is one link in a session's linear token chain. Only the
// SHA-256 hash of the secret is ever stored.
type RefreshToken struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the token is usable at the given instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// LoginAttempt is an append-only audit row used as a sliding-window count.
type LoginAttempt struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Succeeded  bool      `json:"succeeded"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResetAttempt is an append-only audit row for password-reset requests.
type ResetAttempt struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

// Invitation invites an email address into a workspace with a role. The
// token is the acceptance credential: it is returned to the inviter at
// creation for out-of-band delivery and to the invitee in their own pending
// list, and is never listed workspace-wide.
type Invitation struct {
	ID          int64               `json:"id"`
	WorkspaceID int64               `json:"workspace_id"`
	Email       string              `json:"email"`
	Role        authz.WorkspaceRole `json:"role"`
	Token       string              `json:"token"`
	InvitedBy   int64               `json:"invited_by"`
	ExpiresAt   time.Time           `json:"expires_at"`
	AcceptedAt  *time.Time          `json:"accepted_at,omitempty"`
	AcceptedBy  *int64              `json:"accepted_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// RolePermission is one row of the denormalized role-to-permission mirror,
// persisted for audit and admin display. The runtime decision path uses the
// static catalog in pkg/authz instead.
type RolePermission struct {
	Role       string           `json:"role"`
	Permission authz.Permission `json:"permission"`
	Scope      string           `json:"scope"`
}
