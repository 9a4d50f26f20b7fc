package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/taskhive/pkg/observability"
)

// ErrUserNotFound is returned when the principal does not exist.
var ErrUserNotFound = errors.New("authz: user not found")

// ErrWorkspaceNotFound is returned when a workspace-scoped check is given a
// nonexistent (or soft-deleted) workspace id.
var ErrWorkspaceNotFound = errors.New("authz: workspace not found")

// Principal is the resolver's view of an authenticated user.
type Principal struct {
	ID         int64
	GlobalRole GlobalRole
}

// PrincipalSource loads principals. Implementations return ErrUserNotFound
// for missing users.
type PrincipalSource interface {
	GetPrincipal(ctx context.Context, userID int64) (*Principal, error)
}

// WorkspaceSource answers workspace existence. Soft-deleted workspaces do
// not exist for authorization purposes.
type WorkspaceSource interface {
	WorkspaceExists(ctx context.Context, workspaceID int64) (bool, error)
}

// MembershipSource answers the caller's active role in a workspace.
// Soft-deleted memberships are excluded everywhere: a removed member has no
// role, regardless of which read path served the lookup.
type MembershipSource interface {
	MemberRole(ctx context.Context, userID, workspaceID int64) (WorkspaceRole, bool, error)
}

// Resolver decides whether a principal may perform an action, optionally in
// a workspace.
type Resolver struct {
	principals PrincipalSource
	workspaces WorkspaceSource
	members    MembershipSource
	metrics    *observability.Metrics
}

// NewResolver creates a permission resolver.
func NewResolver(principals PrincipalSource, workspaces WorkspaceSource, members MembershipSource, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		principals: principals,
		workspaces: workspaces,
		members:    members,
		metrics:    metrics,
	}
}

// HasPermission reports whether the principal may perform the action tagged
// by permission. workspaceID is required for workspace-scoped permissions
// and ignored otherwise.
//
// Each step short-circuits, in this order:
//
//  1. load principal (ErrUserNotFound if absent)
//  2. global admin -> true, unconditionally, including for workspaces the
//     admin never joined (administrative override)
//  3. global-scope permission -> false for everyone else
//  4. user-scope permission -> true for any existing principal
//  5. workspace-scope: membership role's static permission set decides
//
// The order is load-bearing: the admin bypass must precede scope checks,
// and the only storage/cache hit is deferred to step 5.
func (r *Resolver) HasPermission(ctx context.Context, userID int64, permission Permission, workspaceID *int64) (bool, error) {
	allowed, err := r.resolve(ctx, userID, permission, workspaceID)
	if r.metrics != nil {
		switch {
		case err != nil:
			r.metrics.PermissionChecksTotal.WithLabelValues("error").Inc()
		case allowed:
			r.metrics.PermissionChecksTotal.WithLabelValues("granted").Inc()
		default:
			r.metrics.PermissionChecksTotal.WithLabelValues("denied").Inc()
		}
	}
	return allowed, err
}

func (r *Resolver) resolve(ctx context.Context, userID int64, permission Permission, workspaceID *int64) (bool, error) {
	principal, err := r.principals.GetPrincipal(ctx, userID)
	if err != nil {
		return false, err
	}

	if principal.GlobalRole == GlobalRoleAdmin {
		return true, nil
	}

	switch ScopeOf(permission) {
	case ScopeGlobal:
		return false, nil
	case ScopeUser:
		return true, nil
	}

	// Workspace scope from here on.
	if workspaceID == nil {
		return false, nil
	}

	exists, err := r.workspaces.WorkspaceExists(ctx, *workspaceID)
	if err != nil {
		return false, fmt.Errorf("failed to check workspace: %w", err)
	}
	if !exists {
		return false, ErrWorkspaceNotFound
	}

	role, isMember, err := r.members.MemberRole(ctx, userID, *workspaceID)
	if err != nil {
		return false, fmt.Errorf("failed to look up membership: %w", err)
	}
	if !isMember {
		// Non-members hold zero workspace permissions, even actions their
		// role elsewhere would grant.
		return false, nil
	}

	return WorkspacePermissions(role).Contains(permission), nil
}
