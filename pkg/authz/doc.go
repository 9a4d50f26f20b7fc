// Package authz implements permission resolution for the two-tier role model.
//
// # Overview
//
// Every action a principal can take is tagged with a Permission. Each
// permission belongs to exactly one scope (Global, Workspace, or User),
// fixed in the static catalog at compile time. Roles map to permission sets
// through hand-authored tables in catalog.go; the runtime decision path never
// consults the database for the role-to-permission closure.
//
// # Permission Resolution
//
// The Resolver answers "may principal P perform action A in workspace W?":
//
//	resolver := authz.NewResolver(users, workspaces, members, reader)
//	ok, err := resolver.HasPermission(ctx, userID, authz.PermissionEditTask, &workspaceID)
//
// Resolution order is load-bearing: global admin bypass first, then scope
// checks, then the workspace membership lookup (the only step touching
// storage or cache).
//
// # Role Hierarchy
//
// Workspace roles carry ordinals (Member < PrivilegedMember < Owner). An
// actor may only manage targets of strictly lower ordinal:
//
//	authz.CheckHierarchy(authz.WorkspaceRoleOwner, authz.WorkspaceRoleMember) // true
//	authz.CheckHierarchy(authz.WorkspaceRoleMember, authz.WorkspaceRoleMember) // false
//
// # Related Packages
//
//   - pkg/store: principal, workspace and membership lookups
//   - pkg/cache: versioned caching of membership rows
package authz
