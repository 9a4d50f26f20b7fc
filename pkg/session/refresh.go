package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// refreshTokenPrefix identifies taskhive refresh tokens.
	refreshTokenPrefix = "thv_"
	// refreshTokenLength is the number of random bytes (32 bytes = 256 bits).
	refreshTokenLength = 32
)

// NewRefreshToken generates a high-entropy opaque refresh token.
// Format: thv_<base64url(32 random bytes)>. The raw value is returned to
// the caller for transmission to the client; only the hash is ever stored.
func NewRefreshToken() (raw string, hash string, err error) {
	randomBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	raw = refreshTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return raw, HashRefreshToken(raw), nil
}

// HashRefreshToken computes the SHA-256 hex hash of a raw token.
// Deterministic and side-effect free; used at issuance and again at
// presentation time to look up the stored row. Rows are never matched by
// comparing raw secrets.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidateRefreshTokenFormat checks the shape of a presented token before
// any storage lookup.
func ValidateRefreshTokenFormat(raw string) error {
	if !strings.HasPrefix(raw, refreshTokenPrefix) {
		return fmt.Errorf("token must start with %q", refreshTokenPrefix)
	}
	encoded := strings.TrimPrefix(raw, refreshTokenPrefix)
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}
