package store

import (
	"context"
	"fmt"
	"time"
)

// RecordLoginAttempt appends a login attempt row. Rows are append-only;
// retention is handled out of band.
func (p *Postgres) RecordLoginAttempt(ctx context.Context, a *LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (identifier, succeeded, ip_address, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx, query, a.Identifier, a.Succeeded, a.IPAddress, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// CountFailedLogins counts failed login attempts for an identifier since the
// given instant.
func (p *Postgres) CountFailedLogins(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE identifier = $1 AND succeeded = FALSE AND created_at >= $2
	`
	var count int
	if err := p.db.QueryRowContext(ctx, query, identifier, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count login attempts: %w", err)
	}
	return count, nil
}

// RecordResetAttempt appends a password-reset attempt row.
func (p *Postgres) RecordResetAttempt(ctx context.Context, a *ResetAttempt) error {
	query := `
		INSERT INTO reset_attempts (identifier, ip_address, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx, query, a.Identifier, a.IPAddress, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to record reset attempt: %w", err)
	}
	return nil
}

// CountResetAttempts counts reset attempts for an identifier since the given
// instant.
func (p *Postgres) CountResetAttempts(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM reset_attempts WHERE identifier = $1 AND created_at >= $2`
	var count int
	if err := p.db.QueryRowContext(ctx, query, identifier, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reset attempts: %w", err)
	}
	return count, nil
}

// CountResetAttemptsByIP counts reset attempts from an IP since the given
// instant, blunting distributed attempts against many accounts.
func (p *Postgres) CountResetAttemptsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM reset_attempts WHERE ip_address = $1 AND created_at >= $2`
	var count int
	if err := p.db.QueryRowContext(ctx, query, ip, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reset attempts by ip: %w", err)
	}
	return count, nil
}
