package authz

import "fmt"

// Permission constants. The catalog below is the canonical source of truth
// for scope assignment and role grants; the persisted role_permissions table
// is a rebuildable mirror for admin display only.
const (
	// Global scope
	PermissionManageUsers       Permission = "manage_users"
	PermissionViewAllWorkspaces Permission = "view_all_workspaces"
	PermissionManageSystem      Permission = "manage_system"

	// Workspace scope
	PermissionViewWorkspace     Permission = "view_workspace"
	PermissionEditWorkspace     Permission = "edit_workspace"
	PermissionDeleteWorkspace   Permission = "delete_workspace"
	PermissionViewBoard         Permission = "view_board"
	PermissionCreateBoard       Permission = "create_board"
	PermissionEditBoard         Permission = "edit_board"
	PermissionDeleteBoard       Permission = "delete_board"
	PermissionViewTask          Permission = "view_task"
	PermissionCreateTask        Permission = "create_task"
	PermissionEditTask          Permission = "edit_task"
	PermissionDeleteTask        Permission = "delete_task"
	PermissionManageMembers     Permission = "manage_members"
	PermissionManageInvitations Permission = "manage_invitations"

	// User scope
	PermissionViewOwnNotifications Permission = "view_own_notifications"
	PermissionViewOwnInvitations   Permission = "view_own_invitations"
	PermissionManageOwnProfile     Permission = "manage_own_profile"
)

// permissionScopes assigns every permission exactly one scope. Scope
// assignment never changes at runtime.
var permissionScopes = map[Permission]PermissionScope{
	PermissionManageUsers:       ScopeGlobal,
	PermissionViewAllWorkspaces: ScopeGlobal,
	PermissionManageSystem:      ScopeGlobal,

	PermissionViewWorkspace:     ScopeWorkspace,
	PermissionEditWorkspace:     ScopeWorkspace,
	PermissionDeleteWorkspace:   ScopeWorkspace,
	PermissionViewBoard:         ScopeWorkspace,
	PermissionCreateBoard:       ScopeWorkspace,
	PermissionEditBoard:         ScopeWorkspace,
	PermissionDeleteBoard:       ScopeWorkspace,
	PermissionViewTask:          ScopeWorkspace,
	PermissionCreateTask:        ScopeWorkspace,
	PermissionEditTask:          ScopeWorkspace,
	PermissionDeleteTask:        ScopeWorkspace,
	PermissionManageMembers:     ScopeWorkspace,
	PermissionManageInvitations: ScopeWorkspace,

	PermissionViewOwnNotifications: ScopeUser,
	PermissionViewOwnInvitations:   ScopeUser,
	PermissionManageOwnProfile:     ScopeUser,
}

// workspaceRolePermissions maps workspace roles to their permission sets.
// Higher roles are supersets of lower ones by construction of these tables,
// not by runtime inheritance.
var workspaceRolePermissions = map[WorkspaceRole]PermissionSet{
	WorkspaceRoleMember: newPermissionSet(
		PermissionViewWorkspace,
		PermissionViewBoard,
		PermissionViewTask,
		PermissionCreateTask,
		PermissionEditTask,
	),
	WorkspaceRolePrivilegedMember: newPermissionSet(
		PermissionViewWorkspace,
		PermissionViewBoard,
		PermissionCreateBoard,
		PermissionEditBoard,
		PermissionViewTask,
		PermissionCreateTask,
		PermissionEditTask,
		PermissionDeleteTask,
		PermissionManageInvitations,
	),
	WorkspaceRoleOwner: newPermissionSet(
		PermissionViewWorkspace,
		PermissionEditWorkspace,
		PermissionDeleteWorkspace,
		PermissionViewBoard,
		PermissionCreateBoard,
		PermissionEditBoard,
		PermissionDeleteBoard,
		PermissionViewTask,
		PermissionCreateTask,
		PermissionEditTask,
		PermissionDeleteTask,
		PermissionManageMembers,
		PermissionManageInvitations,
	),
}

// globalRolePermissions maps global roles to their permission sets. Regular
// users hold no global-scope permissions.
var globalRolePermissions = map[GlobalRole]PermissionSet{
	GlobalRoleAdmin: newPermissionSet(
		PermissionManageUsers,
		PermissionViewAllWorkspaces,
		PermissionManageSystem,
	),
}

func init() {
	// Every granted permission must have a scope; a gap here is a
	// programming error, so fail at startup rather than at first lookup.
	for role, set := range workspaceRolePermissions {
		for p := range set {
			if scope, ok := permissionScopes[p]; !ok {
				panic(fmt.Sprintf("authz: permission %q granted to role %q has no scope", p, role))
			} else if scope != ScopeWorkspace {
				panic(fmt.Sprintf("authz: permission %q granted to workspace role %q has scope %s", p, role, scope))
			}
		}
	}
	for role, set := range globalRolePermissions {
		for p := range set {
			if scope, ok := permissionScopes[p]; !ok {
				panic(fmt.Sprintf("authz: permission %q granted to role %q has no scope", p, role))
			} else if scope != ScopeGlobal {
				panic(fmt.Sprintf("authz: permission %q granted to global role %q has scope %s", p, role, scope))
			}
		}
	}
}

// ScopeOf returns the scope of a permission. Looking up a permission missing
// from the catalog is a programming error and panics.
func ScopeOf(p Permission) PermissionScope {
	scope, ok := permissionScopes[p]
	if !ok {
		panic(fmt.Sprintf("authz: permission %q is not in the catalog", p))
	}
	return scope
}

// AllPermissions returns every catalogued permission. Order is unspecified.
func AllPermissions() []Permission {
	out := make([]Permission, 0, len(permissionScopes))
	for p := range permissionScopes {
		out = append(out, p)
	}
	return out
}

// WorkspacePermissions returns the permission set for a workspace role.
// Unknown roles return the empty set: a rescinded role is a valid transient
// state, not an error.
func WorkspacePermissions(role WorkspaceRole) PermissionSet {
	return workspaceRolePermissions[role]
}

// GlobalPermissions returns the permission set for a global role. Unknown
// roles return the empty set.
func GlobalPermissions(role GlobalRole) PermissionSet {
	return globalRolePermissions[role]
}
