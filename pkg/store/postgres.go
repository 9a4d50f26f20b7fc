package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Postgres implements every repository interface over a single *sql.DB.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an existing database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects to Postgres, verifies the connection, and returns a store.
func Open(ctx context.Context, url string) (*Postgres, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return NewPostgres(db), nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// GetUserByID returns the principal with the given id.
func (p *Postgres) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, email, password_hash, global_role, email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return p.scanUser(p.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail returns the principal with the given email.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, global_role, email_verified, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return p.scanUser(p.db.QueryRowContext(ctx, query, email))
}

// CreateUser inserts a new principal and fills in the generated id.
func (p *Postgres) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, password_hash, global_role, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := p.db.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.GlobalRole, u.EmailVerified).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser updates the mutable fields of a principal.
func (p *Postgres) UpdateUser(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET email = $1, password_hash = $2, global_role = $3, email_verified = $4, updated_at = NOW()
		WHERE id = $5
	`
	result, err := p.db.ExecContext(ctx, query, u.Email, u.PasswordHash, u.GlobalRole, u.EmailVerified, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result)
}

// GetWorkspaceByID returns the workspace if it exists and is not soft-deleted.
func (p *Postgres) GetWorkspaceByID(ctx context.Context, id int64) (*Workspace, error) {
	query := `
		SELECT id, name, created_at, updated_at, deleted_at
		FROM workspaces
		WHERE id = $1 AND deleted_at IS NULL
	`
	w := &Workspace{}
	var deletedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, query, id).
		Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if deletedAt.Valid {
		w.DeletedAt = &deletedAt.Time
	}
	return w, nil
}

// CreateWorkspace inserts a workspace and fills in the generated id.
func (p *Postgres) CreateWorkspace(ctx context.Context, w *Workspace) error {
	query := `
		INSERT INTO workspaces (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := p.db.QueryRowContext(ctx, query, w.Name).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// UpdateWorkspace updates a workspace's name.
func (p *Postgres) UpdateWorkspace(ctx context.Context, w *Workspace) error {
	query := `UPDATE workspaces SET name = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	result, err := p.db.ExecContext(ctx, query, w.Name, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	return requireAffected(result)
}

// SoftDeleteWorkspace marks a workspace deleted. The row is preserved for
// the audit trail.
func (p *Postgres) SoftDeleteWorkspace(ctx context.Context, id int64, now time.Time) error {
	query := `UPDATE workspaces SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := p.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return requireAffected(result)
}

func (p *Postgres) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.GlobalRole, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
