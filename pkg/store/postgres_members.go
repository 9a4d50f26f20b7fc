package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/authz"
)

// GetMember returns the active membership row for a user in a workspace.
// Soft-deleted rows are excluded: a removed member has no membership.
func (p *Postgres) GetMember(ctx context.Context, userID, workspaceID int64) (*WorkspaceMember, error) {
	query := `
		SELECT id, user_id, workspace_id, role, invited_by, created_at, updated_at, deleted_at
		FROM workspace_members
		WHERE user_id = $1 AND workspace_id = $2 AND deleted_at IS NULL
	`
	return p.scanMember(p.db.QueryRowContext(ctx, query, userID, workspaceID))
}

// ListMembers returns the active members of a workspace.
func (p *Postgres) ListMembers(ctx context.Context, workspaceID int64) ([]*WorkspaceMember, error) {
	query := `
		SELECT id, user_id, workspace_id, role, invited_by, created_at, updated_at, deleted_at
		FROM workspace_members
		WHERE workspace_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	rows, err := p.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*WorkspaceMember
	for rows.Next() {
		m := &WorkspaceMember{}
		var invitedBy sql.NullInt64
		var deletedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.UserID, &m.WorkspaceID, &m.Role, &invitedBy,
			&m.CreatedAt, &m.UpdatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if invitedBy.Valid {
			m.InvitedBy = &invitedBy.Int64
		}
		if deletedAt.Valid {
			m.DeletedAt = &deletedAt.Time
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CreateMember inserts a membership row and fills in the generated id.
func (p *Postgres) CreateMember(ctx context.Context, m *WorkspaceMember) error {
	query := `
		INSERT INTO workspace_members (user_id, workspace_id, role, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := p.db.QueryRowContext(ctx, query, m.UserID, m.WorkspaceID, m.Role, m.InvitedBy).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %d in workspace %d: %w", m.UserID, m.WorkspaceID, ErrConflict)
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// UpdateMemberRole changes the role of an active member.
func (p *Postgres) UpdateMemberRole(ctx context.Context, userID, workspaceID int64, role authz.WorkspaceRole) error {
	query := `
		UPDATE workspace_members SET role = $1, updated_at = NOW()
		WHERE user_id = $2 AND workspace_id = $3 AND deleted_at IS NULL
	`
	result, err := p.db.ExecContext(ctx, query, role, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return requireAffected(result)
}

// SoftDeleteMember marks a membership removed, preserving the row.
func (p *Postgres) SoftDeleteMember(ctx context.Context, userID, workspaceID int64, now time.Time) error {
	query := `
		UPDATE workspace_members SET deleted_at = $1, updated_at = $1
		WHERE user_id = $2 AND workspace_id = $3 AND deleted_at IS NULL
	`
	result, err := p.db.ExecContext(ctx, query, now, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return requireAffected(result)
}

// RestoreMember reactivates a soft-deleted membership with a new role.
func (p *Postgres) RestoreMember(ctx context.Context, userID, workspaceID int64, role authz.WorkspaceRole) error {
	query := `
		UPDATE workspace_members SET deleted_at = NULL, role = $1, updated_at = NOW()
		WHERE user_id = $2 AND workspace_id = $3 AND deleted_at IS NOT NULL
	`
	result, err := p.db.ExecContext(ctx, query, role, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to restore member: %w", err)
	}
	return requireAffected(result)
}

func (p *Postgres) scanMember(row *sql.Row) (*WorkspaceMember, error) {
	m := &WorkspaceMember{}
	var invitedBy sql.NullInt64
	var deletedAt sql.NullTime
	err := row.Scan(&m.ID, &m.UserID, &m.WorkspaceID, &m.Role, &invitedBy,
		&m.CreatedAt, &m.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	if invitedBy.Valid {
		m.InvitedBy = &invitedBy.Int64
	}
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.Time
	}
	return m, nil
}
