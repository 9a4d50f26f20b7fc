package authz

// GlobalRole is a system-wide role attached to a principal.
type GlobalRole string

const (
	// GlobalRoleNone is the default for regular users.
	GlobalRoleNone GlobalRole = "none"
	// GlobalRoleAdmin bypasses all workspace-scoped checks.
	GlobalRoleAdmin GlobalRole = "admin"
)

// WorkspaceRole is a per-workspace role. The ordinal encodes a strict
// hierarchy: an actor may only manage targets of strictly lower ordinal.
type WorkspaceRole string

const (
	WorkspaceRoleMember           WorkspaceRole = "member"
	WorkspaceRolePrivilegedMember WorkspaceRole = "privileged_member"
	WorkspaceRoleOwner            WorkspaceRole = "owner"
)

// Ordinal returns the hierarchy position of the role. Unknown roles map to
// -1 so they always lose hierarchy comparisons.
func (r WorkspaceRole) Ordinal() int {
	switch r {
	case WorkspaceRoleMember:
		return 0
	case WorkspaceRolePrivilegedMember:
		return 1
	case WorkspaceRoleOwner:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the role is one of the known workspace roles.
func (r WorkspaceRole) Valid() bool {
	return r.Ordinal() >= 0
}

// CheckHierarchy reports whether an actor with role actor may manage
// (assign, remove, or change the role of) a target with role target.
// Equal-or-higher is always denied; ownership can therefore never be
// granted or taken through a role update by a non-owner.
func CheckHierarchy(actor, target WorkspaceRole) bool {
	return actor.Ordinal() > target.Ordinal()
}

// Permission is an enumerated action tag.
type Permission string

// PermissionScope is the authorization domain a permission applies to.
type PermissionScope int

const (
	// ScopeGlobal permissions are held only by global admins.
	ScopeGlobal PermissionScope = iota
	// ScopeWorkspace permissions are granted through workspace membership.
	ScopeWorkspace
	// ScopeUser permissions are held by every authenticated principal.
	ScopeUser
)

func (s PermissionScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeWorkspace:
		return "workspace"
	case ScopeUser:
		return "user"
	default:
		return "unknown"
	}
}

// PermissionSet is an immutable set of permissions.
type PermissionSet map[Permission]struct{}

// Contains reports whether the set holds the permission.
func (ps PermissionSet) Contains(p Permission) bool {
	_, ok := ps[p]
	return ok
}

// List returns the permissions in the set. Order is unspecified.
func (ps PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(ps))
	for p := range ps {
		out = append(out, p)
	}
	return out
}

func newPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
