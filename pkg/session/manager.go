package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/store"
)

// ErrInvalidRefreshToken is the single user-visible failure for refresh
// paths. Not-found, expired, and revoked all collapse into it so callers
// cannot probe which half failed.
var ErrInvalidRefreshToken = errors.New("session: invalid refresh token")

// ErrTokenReplayed marks presentation of an already-rotated token. It wraps
// ErrInvalidRefreshToken: clients see a plain authentication failure, while
// monitoring can match the replay specifically.
var ErrTokenReplayed = fmt.Errorf("%w: reuse of rotated token", ErrInvalidRefreshToken)

// RequestInfo tags issued tokens with the requesting client for audit.
type RequestInfo struct {
	UserAgent string
	IPAddress string
}

// TokenPair is the result of issuance or rotation.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Manager owns refresh-token persistence, rotation, and revocation.
type Manager struct {
	tokens     *Tokens
	tokenStore store.RefreshTokenStore
	users      store.UserStore
	refreshTTL time.Duration
	now        func() time.Time
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewManager creates a session manager.
func NewManager(tokens *Tokens, tokenStore store.RefreshTokenStore, users store.UserStore,
	refreshTTL time.Duration, logger *observability.Logger, metrics *observability.Metrics) (*Manager, error) {
	if refreshTTL <= 0 {
		return nil, errors.New("session: refresh token lifetime must be positive")
	}
	return &Manager{
		tokens:     tokens,
		tokenStore: tokenStore,
		users:      users,
		refreshTTL: refreshTTL,
		now:        time.Now,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Issue mints an access token and a fresh refresh token, persisting the
// hashed refresh row tagged with the requesting user-agent and IP.
func (m *Manager) Issue(ctx context.Context, user *store.User, info RequestInfo) (*TokenPair, error) {
	accessToken, accessExpiresAt, err := m.tokens.NewAccessToken(user)
	if err != nil {
		return nil, err
	}

	raw, hash, err := NewRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpiresAt := m.now().UTC().Add(m.refreshTTL)
	row := &store.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: refreshExpiresAt,
		UserAgent: info.UserAgent,
		IPAddress: info.IPAddress,
	}
	if err := m.tokenStore.CreateToken(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	if m.metrics != nil {
		m.metrics.TokensIssuedTotal.Inc()
	}
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     raw,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Rotate exchanges a presented refresh token for a fresh pair, revoking the
// presented one. The chain is strictly linear: if two requests race to
// rotate the same token, the conditional revoke lets exactly one continue;
// the other fails with the replay error.
func (m *Manager) Rotate(ctx context.Context, presentedRaw string, info RequestInfo) (*TokenPair, error) {
	if err := ValidateRefreshTokenFormat(presentedRaw); err != nil {
		return nil, ErrInvalidRefreshToken
	}

	row, err := m.tokenStore.GetTokenByHash(ctx, HashRefreshToken(presentedRaw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	now := m.now().UTC()
	if row.RevokedAt != nil {
		return nil, m.replayDetected(row)
	}
	if !now.Before(row.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := m.tokenStore.RevokeToken(ctx, row.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !revoked {
		// Lost a rotation race: someone else already continued this chain.
		return nil, m.replayDetected(row)
	}

	user, err := m.users.GetUserByID(ctx, row.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user for rotation: %w", err)
	}

	pair, err := m.Issue(ctx, user, info)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.TokenRotationsTotal.Inc()
	}
	return pair, nil
}

// RevokeAll revokes every active refresh token for the user. This is the
// single choke point for credential-level events: password change, forced
// reset, suspected compromise, logout everywhere.
func (m *Manager) RevokeAll(ctx context.Context, userID int64) error {
	n, err := m.tokenStore.RevokeAllForUser(ctx, userID, m.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if m.metrics != nil {
		m.metrics.TokensRevokedTotal.Add(float64(n))
	}
	if m.logger != nil {
		m.logger.WithField("user_id", userID).WithField("revoked", n).Info("revoked all sessions")
	}
	return nil
}

func (m *Manager) replayDetected(row *store.RefreshToken) error {
	if m.metrics != nil {
		m.metrics.TokenReplaysTotal.Inc()
	}
	if m.logger != nil {
		m.logger.WithField("user_id", row.UserID).
			WithField("token_id", row.ID).
			Warn("refresh token replay detected")
	}
	return ErrTokenReplayed
}
