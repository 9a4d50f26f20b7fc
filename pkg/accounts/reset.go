package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/store"
)

// ErrInvalidResetToken rejects expired, tampered, or foreign reset tokens.
var ErrInvalidResetToken = errors.New("accounts: invalid reset token")

const (
	// Reset tokens share the signing secret with access tokens, so they get
	// their own issuer. Access-token validation pins the service issuer and
	// rejects these outright.
	resetTokenIssuer  = "taskhive/password-reset"
	resetTokenPurpose = "password_reset"
	resetTokenTTL     = 30 * time.Minute
)

type resetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// resetTokens mints and validates short-lived single-purpose reset tokens.
// Stateless: possession of a valid token proves the reset request, and
// RevokeAll after the reset invalidates any stolen sessions.
type resetTokens struct {
	secret []byte
	now    func() time.Time
}

func newResetTokens(secret []byte) (*resetTokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("accounts: reset signing secret is required")
	}
	return &resetTokens{secret: secret, now: time.Now}, nil
}

func (r *resetTokens) mint(userID int64) (string, error) {
	now := r.now().UTC()
	claims := resetClaims{
		Purpose: resetTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    resetTokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(resetTokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

func (r *resetTokens) parse(raw string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(raw, &resetClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidResetToken
		}
		return r.secret, nil
	}, jwt.WithIssuer(resetTokenIssuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(r.now))
	if err != nil {
		return 0, ErrInvalidResetToken
	}
	claims, ok := parsed.Claims.(*resetClaims)
	if !ok || !parsed.Valid || claims.Purpose != resetTokenPurpose {
		return 0, ErrInvalidResetToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidResetToken
	}
	return userID, nil
}

// RequestPasswordReset returns a reset token for delivery out of band. The
// response is uniform: unknown addresses and throttled requests yield an
// empty token and a nil error, so callers cannot probe for registered
// accounts. The attempt row is appended in every case.
func (s *Service) RequestPasswordReset(ctx context.Context, email, ip string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil
	}

	throttled, err := s.guard.IsResetThrottled(ctx, email)
	if err != nil {
		return "", err
	}
	ipThrottled, err := s.guard.IsIPThrottled(ctx, ip)
	if err != nil {
		return "", err
	}

	// Recorded even when throttled so the window keeps sliding forward
	// under sustained abuse.
	if err := s.guard.RecordReset(ctx, email, ip); err != nil {
		s.logWarn(err, "failed to record reset attempt")
	}

	if throttled || ipThrottled {
		return "", nil
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	return s.reset.mint(u.ID)
}

// ResetPassword consumes a reset token, installs the new password hash, and
// revokes every outstanding session for the account.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	userID, err := s.reset.parse(resetToken)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return ErrInvalidResetToken
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return s.sessions.RevokeAll(ctx, userID)
}
