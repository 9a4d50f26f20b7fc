package accounts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/session"
	"github.com/taskhive/taskhive/pkg/store"
	"github.com/taskhive/taskhive/pkg/throttle"
)

type memUsers struct {
	nextID int64
	byID   map[int64]*store.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]*store.User)}
}

func (s *memUsers) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memUsers) CreateUser(_ context.Context, u *store.User) error {
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return store.ErrConflict
		}
	}
	s.nextID++
	u.ID = s.nextID
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *memUsers) UpdateUser(_ context.Context, u *store.User) error {
	if _, ok := s.byID[u.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

type memTokens struct {
	nextID int64
	rows   map[string]*store.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{rows: make(map[string]*store.RefreshToken)}
}

func (s *memTokens) CreateToken(_ context.Context, t *store.RefreshToken) error {
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.rows[t.TokenHash] = &cp
	return nil
}

func (s *memTokens) GetTokenByHash(_ context.Context, hash string) (*store.RefreshToken, error) {
	row, ok := s.rows[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *memTokens) RevokeToken(_ context.Context, id int64, now time.Time) (bool, error) {
	for _, row := range s.rows {
		if row.ID == id && row.RevokedAt == nil {
			row.RevokedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *memTokens) RevokeAllForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	var n int64
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *memTokens) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *memTokens) activeCount(userID int64) int {
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.RevokedAt == nil {
			n++
		}
	}
	return n
}

type memAttempts struct {
	logins []store.LoginAttempt
	resets []store.ResetAttempt
}

func (s *memAttempts) RecordLoginAttempt(_ context.Context, a *store.LoginAttempt) error {
	a.CreatedAt = time.Now().UTC()
	s.logins = append(s.logins, *a)
	return nil
}

func (s *memAttempts) CountFailedLogins(_ context.Context, identifier string, since time.Time) (int, error) {
	n := 0
	for _, a := range s.logins {
		if a.Identifier == identifier && !a.Succeeded && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memAttempts) RecordResetAttempt(_ context.Context, a *store.ResetAttempt) error {
	a.CreatedAt = time.Now().UTC()
	s.resets = append(s.resets, *a)
	return nil
}

func (s *memAttempts) CountResetAttempts(_ context.Context, identifier string, since time.Time) (int, error) {
	n := 0
	for _, a := range s.resets {
		if a.Identifier == identifier && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memAttempts) CountResetAttemptsByIP(_ context.Context, ip string, since time.Time) (int, error) {
	n := 0
	for _, a := range s.resets {
		if a.IPAddress == ip && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type accountsFixture struct {
	svc      *Service
	users    *memUsers
	tokens   *memTokens
	attempts *memAttempts
	sessions *session.Manager
	jwts     *session.Tokens
}

const loginMax = 5

func newFixture(t *testing.T) *accountsFixture {
	t.Helper()
	secret := []byte("0123456789abcdef0123456789abcdef")

	users := newMemUsers()
	tokenRows := newMemTokens()
	attempts := &memAttempts{}

	jwts, err := session.NewTokens(secret, 15*time.Minute)
	require.NoError(t, err)
	sessions, err := session.NewManager(jwts, tokenRows, users, 30*24*time.Hour, nil, nil)
	require.NoError(t, err)
	guard, err := throttle.NewGuard(attempts,
		throttle.Limit{Max: loginMax, Window: 15 * time.Minute},
		throttle.Limit{Max: 3, Window: time.Hour},
		throttle.Limit{Max: 10, Window: time.Hour},
		nil)
	require.NoError(t, err)

	svc, err := NewService(users, sessions, guard, nil, secret, nil)
	require.NoError(t, err)
	return &accountsFixture{svc: svc, users: users, tokens: tokenRows, attempts: attempts, sessions: sessions, jwts: jwts}
}

func (f *accountsFixture) register(t *testing.T, email, password string, verified bool) *store.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), email, password)
	require.NoError(t, err)
	if verified {
		require.NoError(t, f.svc.VerifyEmail(context.Background(), u.ID))
	}
	return u
}

var info = session.RequestInfo{UserAgent: "go-test", IPAddress: "203.0.113.9"}

func TestRegisterNormalizesAndHashes(t *testing.T) {
	f := newFixture(t)

	u := f.register(t, "  Worker@Example.COM ", "hunter2hunter2", false)
	assert.Equal(t, "worker@example.com", u.Email)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))
	assert.NotContains(t, u.PasswordHash, "hunter2")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "not-an-email", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Register(ctx, "a@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@example.com", "hunter2hunter2", false)

	_, err := f.svc.Register(context.Background(), "A@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "a@example.com", "hunter2hunter2", false)

	// Correct password, unverified address.
	_, err := f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	require.NoError(t, f.svc.VerifyEmail(ctx, u.ID))
	pair, err := f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginUniformFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	// Unknown address and wrong password are indistinguishable.
	_, err := f.svc.Login(ctx, "ghost@example.com", "hunter2hunter2", info)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@example.com", "wrong password", info)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginThrottledAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	for i := 0; i < loginMax; i++ {
		_, err := f.svc.Login(ctx, "a@example.com", "wrong password", info)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the correct password is refused while throttled.
	_, err := f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	assert.ErrorIs(t, err, ErrThrottled)

	// The throttled request itself leaves no attempt row.
	assert.Len(t, f.attempts.logins, loginMax)
}

func TestRequestPasswordResetUniformResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	token, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// Unknown address: same nil error, empty token.
	token, err = f.svc.RequestPasswordReset(ctx, "ghost@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRequestPasswordResetThrottled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	for i := 0; i < 3; i++ {
		_, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
		require.NoError(t, err)
	}

	token, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
	require.NoError(t, err)
	assert.Empty(t, token, "throttled request looks identical to an unknown address")

	// Attempts are recorded even when throttled.
	assert.Len(t, f.attempts.resets, 4)
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "a@example.com", "hunter2hunter2", true)

	_, err := f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	require.NoError(t, err)
	require.Equal(t, 2, f.tokens.activeCount(u.ID))

	token, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "brand-new-password"))
	assert.Equal(t, 0, f.tokens.activeCount(u.ID), "reset must revoke every session")

	_, err = f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@example.com", "brand-new-password", info)
	assert.NoError(t, err)
}

func TestResetPasswordRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.ResetPassword(ctx, "garbage", "brand-new-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	// An access token is not a reset token even though both are HS256 JWTs
	// under different purposes.
	f.register(t, "a@example.com", "hunter2hunter2", true)
	pair, err := f.svc.Login(ctx, "a@example.com", "hunter2hunter2", info)
	require.NoError(t, err)
	err = f.svc.ResetPassword(ctx, pair.AccessToken, "brand-new-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetTokenNotUsableAsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	token, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Shared secret, separate issuers: a reset token must never authenticate
	// an API request.
	_, err = f.jwts.ParseAccessToken(token)
	assert.ErrorIs(t, err, session.ErrInvalidAccessToken)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	token, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
	require.NoError(t, err)

	f.svc.reset.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	err = f.svc.ResetPassword(ctx, token, "brand-new-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPasswordShortPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com", "hunter2hunter2", true)

	token, err := f.svc.RequestPasswordReset(ctx, "a@example.com", "203.0.113.9")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, token, "tiny")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
