package workspaces

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/cache"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/store"
)

var (
	// ErrForbidden rejects a mutation the actor's role does not allow.
	ErrForbidden = errors.New("workspaces: forbidden")
	// ErrAlreadyMember rejects adding a user who is already an active member.
	ErrAlreadyMember = errors.New("workspaces: already a member")
	// ErrNotMember rejects mutating a membership that does not exist.
	ErrNotMember = errors.New("workspaces: not a member")
	// ErrInvalidRole rejects roles outside the workspace role set.
	ErrInvalidRole = errors.New("workspaces: invalid role")
	// ErrInvalidInvitation covers unknown, expired, consumed, and
	// wrong-recipient invitation tokens.
	ErrInvalidInvitation = errors.New("workspaces: invalid invitation")
)

// Service manages workspaces, memberships, and invitations.
type Service struct {
	workspaces  store.WorkspaceStore
	members     store.MembershipStore
	invitations store.InvitationStore
	users       store.UserStore
	bus         *cache.Bus
	logger      *observability.Logger
	now         func() time.Time
}

// NewService creates a workspaces service.
func NewService(workspaces store.WorkspaceStore, members store.MembershipStore,
	invitations store.InvitationStore, users store.UserStore,
	bus *cache.Bus, logger *observability.Logger) (*Service, error) {
	if workspaces == nil || members == nil || invitations == nil || users == nil || bus == nil {
		return nil, errors.New("workspaces: all stores and the bus are required")
	}
	return &Service{
		workspaces:  workspaces,
		members:     members,
		invitations: invitations,
		users:       users,
		bus:         bus,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Create creates a workspace with the actor as its Owner.
func (s *Service) Create(ctx context.Context, actorID int64, name string) (*store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("workspaces: name is required")
	}

	w := &store.Workspace{Name: name}
	if err := s.workspaces.CreateWorkspace(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	m := &store.WorkspaceMember{
		UserID:      actorID,
		WorkspaceID: w.ID,
		Role:        authz.WorkspaceRoleOwner,
	}
	if err := s.members.CreateMember(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	// Existence and membership may be negatively cached from before the
	// workspace existed.
	if err := s.bus.InvalidateWorkspace(ctx, w.ID); err != nil {
		return nil, err
	}
	if err := s.bus.InvalidateMembership(ctx, actorID, w.ID); err != nil {
		return nil, err
	}
	return w, nil
}

// Rename changes the workspace name. The actor needs edit rights.
func (s *Service) Rename(ctx context.Context, actorID, workspaceID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("workspaces: name is required")
	}

	if err := s.requirePermission(ctx, actorID, workspaceID, authz.PermissionEditWorkspace); err != nil {
		return err
	}

	w, err := s.workspaces.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	w.Name = name
	if err := s.workspaces.UpdateWorkspace(ctx, w); err != nil {
		return fmt.Errorf("failed to rename workspace: %w", err)
	}

	return s.bus.InvalidateWorkspace(ctx, workspaceID)
}

// Archive soft-deletes the workspace. From that instant every
// workspace-scoped permission check against it fails with workspace not
// found.
func (s *Service) Archive(ctx context.Context, actorID, workspaceID int64) error {
	if err := s.requirePermission(ctx, actorID, workspaceID, authz.PermissionDeleteWorkspace); err != nil {
		return err
	}

	if err := s.workspaces.SoftDeleteWorkspace(ctx, workspaceID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to archive workspace: %w", err)
	}

	return s.bus.InvalidateWorkspace(ctx, workspaceID)
}

// requirePermission checks a workspace-scoped permission directly against
// the catalog: global admins pass, otherwise the actor's active membership
// role must grant it.
func (s *Service) requirePermission(ctx context.Context, actorID, workspaceID int64, perm authz.Permission) error {
	admin, role, isMember, err := s.actorStanding(ctx, actorID, workspaceID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	if !isMember || !authz.WorkspacePermissions(role).Contains(perm) {
		return ErrForbidden
	}
	return nil
}

// actorStanding loads the actor's global-admin flag and active workspace
// role in one place.
func (s *Service) actorStanding(ctx context.Context, actorID, workspaceID int64) (admin bool, role authz.WorkspaceRole, isMember bool, err error) {
	u, err := s.users.GetUserByID(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return false, "", false, authz.ErrUserNotFound
	}
	if err != nil {
		return false, "", false, fmt.Errorf("failed to load actor: %w", err)
	}
	if u.IsAdmin() {
		return true, "", false, nil
	}

	m, err := s.members.GetMember(ctx, actorID, workspaceID)
	if errors.Is(err, store.ErrNotFound) {
		return false, "", false, nil
	}
	if err != nil {
		return false, "", false, fmt.Errorf("failed to load actor membership: %w", err)
	}
	return false, m.Role, true, nil
}

// canActOn reports whether the actor may grant or act upon the target role:
// global admin, or an active member whose role is strictly higher.
func (s *Service) canActOn(ctx context.Context, actorID, workspaceID int64, target authz.WorkspaceRole) (bool, error) {
	admin, role, isMember, err := s.actorStanding(ctx, actorID, workspaceID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	if !isMember {
		return false, nil
	}
	return authz.CheckHierarchy(role, target), nil
}
