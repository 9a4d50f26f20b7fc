package workspaces

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/store"
)

const invitationTTL = 7 * 24 * time.Hour

// Invite creates a pending invitation for an email address. The actor must
// hold invitation rights and outrank the offered role.
func (s *Service) Invite(ctx context.Context, actorID, workspaceID int64, email string, role authz.WorkspaceRole) (*store.Invitation, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("workspaces: valid email is required")
	}

	if err := s.requirePermission(ctx, actorID, workspaceID, authz.PermissionManageInvitations); err != nil {
		return nil, err
	}
	ok, err := s.canActOn(ctx, actorID, workspaceID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	token, err := newInvitationToken()
	if err != nil {
		return nil, err
	}

	inv := &store.Invitation{
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		InvitedBy:   actorID,
		ExpiresAt:   s.now().UTC().Add(invitationTTL),
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	if err := s.invalidateInviteeByEmail(ctx, email); err != nil {
		return nil, err
	}
	return inv, nil
}

// AcceptInvitation consumes an invitation token and creates (or restores)
// the membership. The accepting user's address must match the invitation.
func (s *Service) AcceptInvitation(ctx context.Context, userID int64, token string) error {
	inv, err := s.invitations.GetInvitationByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidInvitation
	}
	if err != nil {
		return fmt.Errorf("failed to load invitation: %w", err)
	}

	now := s.now().UTC()
	if inv.AcceptedAt != nil || !now.Before(inv.ExpiresAt) {
		return ErrInvalidInvitation
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(u.Email, inv.Email) {
		return ErrInvalidInvitation
	}

	// Mark the invitation consumed before creating the membership; the
	// conditional update makes double-accept lose cleanly.
	if err := s.invitations.MarkInvitationAccepted(ctx, inv.ID, userID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidInvitation
		}
		return fmt.Errorf("failed to consume invitation: %w", err)
	}

	if restoreErr := s.members.RestoreMember(ctx, userID, inv.WorkspaceID, inv.Role); restoreErr != nil {
		if !errors.Is(restoreErr, store.ErrNotFound) {
			return fmt.Errorf("failed to restore membership: %w", restoreErr)
		}
		m := &store.WorkspaceMember{
			UserID:      userID,
			WorkspaceID: inv.WorkspaceID,
			Role:        inv.Role,
			InvitedBy:   &inv.InvitedBy,
		}
		if err := s.members.CreateMember(ctx, m); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("failed to create membership: %w", err)
		}
	}

	if err := s.bus.InvalidateMembership(ctx, userID, inv.WorkspaceID); err != nil {
		return err
	}
	return s.bus.InvalidateUserInvitations(ctx, userID)
}

// RevokeInvitation deletes a pending invitation. The actor must hold
// invitation rights in the workspace and outrank the offered role.
func (s *Service) RevokeInvitation(ctx context.Context, actorID int64, token string) error {
	inv, err := s.invitations.GetInvitationByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidInvitation
	}
	if err != nil {
		return fmt.Errorf("failed to load invitation: %w", err)
	}

	if err := s.requirePermission(ctx, actorID, inv.WorkspaceID, authz.PermissionManageInvitations); err != nil {
		return err
	}
	ok, err := s.canActOn(ctx, actorID, inv.WorkspaceID, inv.Role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	if err := s.invitations.DeleteInvitation(ctx, inv.ID); err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}

	return s.invalidateInviteeByEmail(ctx, inv.Email)
}

// ListInvitations returns pending invitations addressed to the user's
// email.
func (s *Service) ListInvitations(ctx context.Context, userID int64) ([]*store.Invitation, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	invs, err := s.invitations.ListInvitationsByEmail(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invs, nil
}

// invalidateInviteeByEmail bumps the invitee's invitation list version when
// the address already belongs to an account. An unregistered address has
// nothing cached yet, so there is nothing to bump.
func (s *Service) invalidateInviteeByEmail(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve invitee: %w", err)
	}
	return s.bus.InvalidateUserInvitations(ctx, u.ID)
}

func newInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
