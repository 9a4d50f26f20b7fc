package authz

import (
	"context"

	"github.com/taskhive/taskhive/pkg/cache"
)

// membershipEntry is the cached shape of a membership lookup. Negative
// results are cached too: membership mutations bump the membership version
// key, so a cached "not a member" can never outlive a re-add.
type membershipEntry struct {
	Found bool          `json:"found"`
	Role  WorkspaceRole `json:"role,omitempty"`
}

// CachedMembershipSource wraps a MembershipSource with the versioned cache
// reader.
type CachedMembershipSource struct {
	inner  MembershipSource
	reader *cache.Reader
}

// NewCachedMembershipSource wraps inner with versioned caching.
func NewCachedMembershipSource(inner MembershipSource, reader *cache.Reader) *CachedMembershipSource {
	return &CachedMembershipSource{inner: inner, reader: reader}
}

// MemberRole implements MembershipSource.
func (s *CachedMembershipSource) MemberRole(ctx context.Context, userID, workspaceID int64) (WorkspaceRole, bool, error) {
	entry, err := cache.GetOrCompute(ctx, s.reader, cache.MembershipKey(userID, workspaceID),
		func(ctx context.Context) (membershipEntry, error) {
			role, found, err := s.inner.MemberRole(ctx, userID, workspaceID)
			return membershipEntry{Found: found, Role: role}, err
		})
	if err != nil {
		return "", false, err
	}
	return entry.Role, entry.Found, nil
}

type workspaceEntry struct {
	Exists bool `json:"exists"`
}

// CachedWorkspaceSource wraps a WorkspaceSource with the versioned cache
// reader. Workspace archive/delete bumps the workspace version key.
type CachedWorkspaceSource struct {
	inner  WorkspaceSource
	reader *cache.Reader
}

// NewCachedWorkspaceSource wraps inner with versioned caching.
func NewCachedWorkspaceSource(inner WorkspaceSource, reader *cache.Reader) *CachedWorkspaceSource {
	return &CachedWorkspaceSource{inner: inner, reader: reader}
}

// WorkspaceExists implements WorkspaceSource.
func (s *CachedWorkspaceSource) WorkspaceExists(ctx context.Context, workspaceID int64) (bool, error) {
	entry, err := cache.GetOrCompute(ctx, s.reader, cache.WorkspaceKey(workspaceID),
		func(ctx context.Context) (workspaceEntry, error) {
			exists, err := s.inner.WorkspaceExists(ctx, workspaceID)
			return workspaceEntry{Exists: exists}, err
		})
	if err != nil {
		return false, err
	}
	return entry.Exists, nil
}
