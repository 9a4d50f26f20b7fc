package workspaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/store"
)

// AddMember adds (or restores) a membership with the given role. The actor
// must outrank the granted role, or be a global admin.
func (s *Service) AddMember(ctx context.Context, actorID, workspaceID, userID int64, role authz.WorkspaceRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	ok, err := s.canActOn(ctx, actorID, workspaceID, role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	if _, err := s.members.GetMember(ctx, userID, workspaceID); err == nil {
		return ErrAlreadyMember
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check membership: %w", err)
	}

	// A soft-deleted row from an earlier stint is reactivated in place so
	// the unique (user, workspace) pair survives rejoin.
	if err := s.members.RestoreMember(ctx, userID, workspaceID, role); err == nil {
		return s.bus.InvalidateMembership(ctx, userID, workspaceID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to restore membership: %w", err)
	}

	m := &store.WorkspaceMember{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Role:        role,
		InvitedBy:   &actorID,
	}
	if err := s.members.CreateMember(ctx, m); err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return s.bus.InvalidateMembership(ctx, userID, workspaceID)
}

// RemoveMember soft-deletes a membership. The actor must outrank the
// target's current role or be a global admin; members may always remove
// themselves (leave).
func (s *Service) RemoveMember(ctx context.Context, actorID, workspaceID, userID int64) error {
	target, err := s.members.GetMember(ctx, userID, workspaceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}

	if actorID != userID {
		ok, err := s.canActOn(ctx, actorID, workspaceID, target.Role)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
	}

	if err := s.members.SoftDeleteMember(ctx, userID, workspaceID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return s.bus.InvalidateMembership(ctx, userID, workspaceID)
}

// ChangeRole updates a member's role. The actor must strictly outrank both
// the target's current role and the new one, so a PrivilegedMember can
// never assign Owner, and an Owner cannot be demoted by a peer.
func (s *Service) ChangeRole(ctx context.Context, actorID, workspaceID, userID int64, role authz.WorkspaceRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	target, err := s.members.GetMember(ctx, userID, workspaceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	if target.Role == role {
		return nil
	}

	okCurrent, err := s.canActOn(ctx, actorID, workspaceID, target.Role)
	if err != nil {
		return err
	}
	okNew, err := s.canActOn(ctx, actorID, workspaceID, role)
	if err != nil {
		return err
	}
	if !okCurrent || !okNew {
		return ErrForbidden
	}

	if err := s.members.UpdateMemberRole(ctx, userID, workspaceID, role); err != nil {
		return fmt.Errorf("failed to change role: %w", err)
	}

	return s.bus.InvalidateMembership(ctx, userID, workspaceID)
}

// ListMembers returns the active members of a workspace. The actor needs
// view rights.
func (s *Service) ListMembers(ctx context.Context, actorID, workspaceID int64) ([]*store.WorkspaceMember, error) {
	if err := s.requirePermission(ctx, actorID, workspaceID, authz.PermissionViewWorkspace); err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
