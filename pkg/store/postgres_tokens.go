package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateToken inserts a refresh-token row and fills in the generated id.
func (p *Postgres) CreateToken(ctx context.Context, t *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, user_agent, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err := p.db.QueryRowContext(ctx, query, t.UserID, t.TokenHash, t.ExpiresAt, t.UserAgent, t.IPAddress).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetTokenByHash returns the row for a hash regardless of revocation or
// expiry, so the session manager can distinguish replay from garbage.
func (p *Postgres) GetTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, user_agent, ip_address, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	t := &RefreshToken{}
	var revokedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, query, hash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revokedAt, &t.UserAgent, &t.IPAddress, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, nil
}

// RevokeToken sets revoked_at iff the row is still un-revoked. The
// conditional update arbitrates concurrent rotations of the same token:
// exactly one caller observes true.
func (p *Postgres) RevokeToken(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`
	result, err := p.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every active refresh token for the user.
func (p *Postgres) RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL AND expires_at > $1
	`
	result, err := p.db.ExecContext(ctx, query, now, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// DeleteExpiredBefore removes rows whose expiry precedes the cutoff.
func (p *Postgres) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`
	result, err := p.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
