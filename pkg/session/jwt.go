package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/store"
)

const issuer = "taskhive"

// ErrInvalidAccessToken indicates the access token failed validation.
var ErrInvalidAccessToken = errors.New("session: invalid access token")

// AccessClaims are the JWT claims embedded in access tokens.
type AccessClaims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Tokens mints and validates access tokens. It is stateless; the signing
// secret and lifetime come from configuration.
type Tokens struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokens creates a token service. The secret and a positive lifetime are
// required.
func NewTokens(secret []byte, accessTTL time.Duration) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: signing secret is required")
	}
	if accessTTL <= 0 {
		return nil, errors.New("session: access token lifetime must be positive")
	}
	return &Tokens{secret: secret, accessTTL: accessTTL, now: time.Now}, nil
}

// NewAccessToken signs a time-boxed bearer token for the user, embedding
// the subject id, email, and the admin claim when applicable.
func (t *Tokens) NewAccessToken(u *store.User) (string, time.Time, error) {
	now := t.now().UTC()
	expiresAt := now.Add(t.accessTTL)

	claims := AccessClaims{
		Email: u.Email,
		Admin: u.IsAdmin(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies the signature and registered claims and returns
// the embedded claims.
func (t *Tokens) ParseAccessToken(raw string) (*AccessClaims, error) {
	if raw == "" {
		return nil, ErrInvalidAccessToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidAccessToken
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, ErrInvalidAccessToken
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}
