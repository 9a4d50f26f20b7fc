package cache

import "fmt"

// Broadcast channel names. One channel per invalidation domain; the payload
// is the affected entity key suffix.
const (
	ChannelWorkspace     = "workspace-invalidated"
	ChannelWorkspaceRole = "workspace-role-invalidated"
	ChannelMembership    = "membership-invalidated"
	ChannelInvitations   = "user-invitations-invalidated"
)

// WorkspaceKey is the version key for a workspace's cached aggregates.
func WorkspaceKey(workspaceID int64) string {
	return fmt.Sprintf("workspace:%d", workspaceID)
}

// WorkspaceRoleKey is the version key for role assignments in a workspace.
func WorkspaceRoleKey(workspaceID int64) string {
	return fmt.Sprintf("workspace-role:%d", workspaceID)
}

// MembershipKey is the version key for one user's membership in one
// workspace.
func MembershipKey(userID, workspaceID int64) string {
	return fmt.Sprintf("membership:%d:%d", userID, workspaceID)
}

// UserInvitationsKey is the version key for a user's pending invitations.
func UserInvitationsKey(userID int64) string {
	return fmt.Sprintf("user-invitations:%d", userID)
}

// kindOf extracts the invalidation domain from a version key for metric
// labels ("membership:12:34" -> "membership").
func kindOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
