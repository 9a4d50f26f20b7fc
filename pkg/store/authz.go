package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/taskhive/pkg/authz"
)

// Postgres satisfies the resolver's source interfaces directly.

// GetPrincipal implements authz.PrincipalSource.
func (p *Postgres) GetPrincipal(ctx context.Context, userID int64) (*authz.Principal, error) {
	u, err := p.GetUserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, authz.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &authz.Principal{ID: u.ID, GlobalRole: u.GlobalRole}, nil
}

// WorkspaceExists implements authz.WorkspaceSource. Soft-deleted workspaces
// do not exist.
func (p *Postgres) WorkspaceExists(ctx context.Context, workspaceID int64) (bool, error) {
	_, err := p.GetWorkspaceByID(ctx, workspaceID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemberRole implements authz.MembershipSource. GetMember already excludes
// soft-deleted rows.
func (p *Postgres) MemberRole(ctx context.Context, userID, workspaceID int64) (authz.WorkspaceRole, bool, error) {
	m, err := p.GetMember(ctx, userID, workspaceID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Role, true, nil
}

// SeedRolePermissions rebuilds the persisted role-permission mirror from
// the static catalog. Run at startup; the mirror exists for audit and admin
// display, never for authorization decisions.
func SeedRolePermissions(ctx context.Context, rps RolePermissionStore) error {
	var rows []RolePermission

	for _, role := range []authz.WorkspaceRole{
		authz.WorkspaceRoleMember,
		authz.WorkspaceRolePrivilegedMember,
		authz.WorkspaceRoleOwner,
	} {
		for _, perm := range authz.WorkspacePermissions(role).List() {
			rows = append(rows, RolePermission{
				Role:       string(role),
				Permission: perm,
				Scope:      authz.ScopeOf(perm).String(),
			})
		}
	}
	for _, perm := range authz.GlobalPermissions(authz.GlobalRoleAdmin).List() {
		rows = append(rows, RolePermission{
			Role:       string(authz.GlobalRoleAdmin),
			Permission: perm,
			Scope:      authz.ScopeOf(perm).String(),
		})
	}

	if err := rps.ReplaceRolePermissions(ctx, rows); err != nil {
		return fmt.Errorf("failed to seed role permissions: %w", err)
	}
	return nil
}
