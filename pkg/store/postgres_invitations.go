package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateInvitation inserts an invitation and fills in the generated id.
func (p *Postgres) CreateInvitation(ctx context.Context, inv *Invitation) error {
	query := `
		INSERT INTO workspace_invitations (workspace_id, email, role, token, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`
	err := p.db.QueryRowContext(ctx, query, inv.WorkspaceID, inv.Email, inv.Role, inv.Token,
		inv.InvitedBy, inv.ExpiresAt).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invitation for %s in workspace %d: %w", inv.Email, inv.WorkspaceID, ErrConflict)
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetInvitationByToken returns the invitation with the given token.
func (p *Postgres) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, workspace_id, email, role, token, invited_by, expires_at, accepted_at, accepted_by, created_at
		FROM workspace_invitations
		WHERE token = $1
	`
	inv := &Invitation{}
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullInt64
	err := p.db.QueryRowContext(ctx, query, token).
		Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy,
			&inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	if acceptedBy.Valid {
		inv.AcceptedBy = &acceptedBy.Int64
	}
	return inv, nil
}

// ListInvitationsByEmail returns pending invitations addressed to an email.
func (p *Postgres) ListInvitationsByEmail(ctx context.Context, email string) ([]*Invitation, error) {
	query := `
		SELECT id, workspace_id, email, role, token, invited_by, expires_at, accepted_at, accepted_by, created_at
		FROM workspace_invitations
		WHERE email = $1 AND accepted_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		var acceptedAt sql.NullTime
		var acceptedBy sql.NullInt64
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token,
			&inv.InvitedBy, &inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		if acceptedAt.Valid {
			inv.AcceptedAt = &acceptedAt.Time
		}
		if acceptedBy.Valid {
			inv.AcceptedBy = &acceptedBy.Int64
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// MarkInvitationAccepted records consumption of an invitation. Only pending
// invitations are affected, so double acceptance fails with ErrNotFound.
func (p *Postgres) MarkInvitationAccepted(ctx context.Context, id, userID int64, now time.Time) error {
	query := `
		UPDATE workspace_invitations SET accepted_at = $1, accepted_by = $2
		WHERE id = $3 AND accepted_at IS NULL
	`
	result, err := p.db.ExecContext(ctx, query, now, userID, id)
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}
	return requireAffected(result)
}

// DeleteInvitation removes a pending invitation.
func (p *Postgres) DeleteInvitation(ctx context.Context, id int64) error {
	query := `DELETE FROM workspace_invitations WHERE id = $1 AND accepted_at IS NULL`
	result, err := p.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return requireAffected(result)
}

// DeleteExpiredInvitations removes pending invitations past the cutoff.
func (p *Postgres) DeleteExpiredInvitations(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM workspace_invitations WHERE expires_at < $1 AND accepted_at IS NULL`
	result, err := p.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ReplaceRolePermissions rebuilds the denormalized role-permission mirror in
// one transaction. The mirror serves admin display only; authorization
// decisions use the static catalog.
func (p *Postgres) ReplaceRolePermissions(ctx context.Context, rolePerms []RolePermission) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions`); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	insert := `INSERT INTO role_permissions (role, permission, scope) VALUES ($1, $2, $3)`
	for _, rp := range rolePerms {
		if _, err := tx.ExecContext(ctx, insert, rp.Role, rp.Permission, rp.Scope); err != nil {
			return fmt.Errorf("failed to insert role permission: %w", err)
		}
	}
	return tx.Commit()
}

// ListRolePermissions returns the persisted role-permission mirror.
func (p *Postgres) ListRolePermissions(ctx context.Context) ([]RolePermission, error) {
	query := `SELECT role, permission, scope FROM role_permissions ORDER BY role, permission`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var out []RolePermission
	for rows.Next() {
		var rp RolePermission
		if err := rows.Scan(&rp.Role, &rp.Permission, &rp.Scope); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}
