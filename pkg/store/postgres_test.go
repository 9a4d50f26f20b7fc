package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/authz"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

var userColumns = []string{"id", "email", "password_hash", "global_role", "email_verified", "created_at", "updated_at"}

func TestGetUserByEmail(t *testing.T) {
	p, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, email, password_hash, global_role, email_verified, created_at, updated_at\s+FROM users\s+WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(7), "a@example.com", "$argon2id$...", "none", true, now, now))

	u, err := p.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, authz.GlobalRoleNone, u.GlobalRole)
	assert.True(t, u.EmailVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmailNotFound(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`FROM users`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := p.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserConflict(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@example.com", "hash", "none", false).
		WillReturnError(&pq.Error{Code: "23505"})

	err := p.CreateUser(context.Background(), &User{
		Email:        "a@example.com",
		PasswordHash: "hash",
		GlobalRole:   authz.GlobalRoleNone,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetMemberExcludesSoftDeleted(t *testing.T) {
	p, mock := newMockStore(t)
	now := time.Now()

	// The query itself filters removed rows; a removed member is simply
	// absent from the result set.
	mock.ExpectQuery(regexp.QuoteMeta("deleted_at IS NULL")).
		WithArgs(int64(2), int64(10)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "workspace_id", "role", "invited_by", "created_at", "updated_at", "deleted_at"}).
			AddRow(int64(1), int64(2), int64(10), "owner", nil, now, now, nil))

	m, err := p.GetMember(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, authz.WorkspaceRoleOwner, m.Role)
	assert.Nil(t, m.InvitedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberRoleNotFound(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE workspace_members SET role`).
		WithArgs("member", int64(2), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.UpdateMemberRole(context.Background(), 2, 10, authz.WorkspaceRoleMember)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeTokenConditional(t *testing.T) {
	p, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL")).
		WithArgs(now, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	revoked, err := p.RevokeToken(context.Background(), 5, now)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Second attempt matches no rows: the race loser sees false, nil.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL")).
		WithArgs(now, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	revoked, err = p.RevokeToken(context.Background(), 5, now)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTokenByHashReturnsRevokedRows(t *testing.T) {
	p, mock := newMockStore(t)
	now := time.Now()
	revokedAt := now.Add(-time.Hour)

	mock.ExpectQuery(`FROM refresh_tokens\s+WHERE token_hash = \$1`).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "user_agent", "ip_address", "created_at"}).
			AddRow(int64(3), int64(7), "abc123", now.Add(time.Hour), revokedAt, "ua", "ip", now))

	row, err := p.GetTokenByHash(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, row.RevokedAt, "revoked rows must come back so replay is detectable")
	assert.Equal(t, revokedAt.Unix(), row.RevokedAt.Unix())
}

func TestRevokeAllForUser(t *testing.T) {
	p, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(now, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := p.RevokeAllForUser(context.Background(), 7, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCountFailedLogins(t *testing.T) {
	p, mock := newMockStore(t)
	since := time.Now().Add(-15 * time.Minute)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM login_attempts\s+WHERE identifier = \$1 AND succeeded = FALSE`).
		WithArgs("a@example.com", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := p.CountFailedLogins(context.Background(), "a@example.com", since)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSoftDeleteWorkspaceNotFound(t *testing.T) {
	p, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE workspaces SET deleted_at`).
		WithArgs(now, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.SoftDeleteWorkspace(context.Background(), 99, now)
	assert.ErrorIs(t, err, ErrNotFound)
}
