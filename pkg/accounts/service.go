package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/session"
	"github.com/taskhive/taskhive/pkg/store"
	"github.com/taskhive/taskhive/pkg/throttle"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrEmailNotVerified denies login for accounts that never confirmed
	// their address.
	ErrEmailNotVerified = errors.New("accounts: email not verified")
	// ErrThrottled rejects a request stopped by the sliding-window guard.
	ErrThrottled = errors.New("accounts: too many attempts")
	// ErrEmailTaken rejects registration of an address already in use.
	ErrEmailTaken = errors.New("accounts: email already registered")
	// ErrInvalidInput rejects malformed registration input.
	ErrInvalidInput = errors.New("accounts: invalid input")
)

const minPasswordLength = 8

// Service orchestrates the account lifecycle flows.
type Service struct {
	users    store.UserStore
	sessions *session.Manager
	guard    *throttle.Guard
	google   *session.GoogleVerifier
	reset    *resetTokens
	logger   *observability.Logger
}

// NewService creates an accounts service. The Google verifier is optional;
// without one, GoogleSignIn fails.
func NewService(users store.UserStore, sessions *session.Manager, guard *throttle.Guard,
	google *session.GoogleVerifier, resetSecret []byte, logger *observability.Logger) (*Service, error) {
	if users == nil || sessions == nil || guard == nil {
		return nil, errors.New("accounts: users, sessions, and guard are required")
	}
	rt, err := newResetTokens(resetSecret)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:    users,
		sessions: sessions,
		guard:    guard,
		google:   google,
		reset:    rt,
		logger:   logger,
	}, nil
}

// Register creates an unverified account with an argon2id password hash.
func (s *Service) Register(ctx context.Context, email, password string) (*store.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &store.User{
		Email:        email,
		PasswordHash: hash,
		GlobalRole:   authz.GlobalRoleNone,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// Login runs the full gate sequence: throttle, credentials, email
// verification, then issuance. The attempt row is appended once the outcome
// is known; a throttled request is rejected before any credential work and
// leaves no row.
func (s *Service) Login(ctx context.Context, email, password string, info session.RequestInfo) (*session.TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	throttled, err := s.guard.IsLoginThrottled(ctx, email)
	if err != nil {
		return nil, err
	}
	if throttled {
		return nil, ErrThrottled
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.failLogin(ctx, email, info)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !VerifyPassword(password, u.PasswordHash) {
		return nil, s.failLogin(ctx, email, info)
	}

	if !u.EmailVerified {
		if err := s.guard.RecordLogin(ctx, email, info.IPAddress, false); err != nil {
			s.logWarn(err, "failed to record login attempt")
		}
		return nil, ErrEmailNotVerified
	}

	pair, err := s.sessions.Issue(ctx, u, info)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RecordLogin(ctx, email, info.IPAddress, true); err != nil {
		s.logWarn(err, "failed to record login attempt")
	}
	return pair, nil
}

// VerifyEmail marks the account's address as confirmed.
func (s *Service) VerifyEmail(ctx context.Context, userID int64) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return nil
	}
	u.EmailVerified = true
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return nil
}

// GoogleSignIn verifies a Google ID token and issues a session for the
// matching account, creating one on first sign-in. Google must attest the
// address as verified.
func (s *Service) GoogleSignIn(ctx context.Context, rawIDToken string, info session.RequestInfo) (*session.TokenPair, error) {
	if s.google == nil {
		return nil, session.ErrInvalidGoogleToken
	}
	identity, err := s.google.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	if !identity.EmailVerified {
		return nil, session.ErrInvalidGoogleToken
	}

	email, err := normalizeEmail(identity.Email)
	if err != nil {
		return nil, session.ErrInvalidGoogleToken
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		u = &store.User{Email: email, GlobalRole: authz.GlobalRoleNone, EmailVerified: true}
		if err := s.users.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	} else if !u.EmailVerified {
		// Google's attestation upgrades a password account that never
		// confirmed its address.
		u.EmailVerified = true
		if err := s.users.UpdateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
	}

	return s.sessions.Issue(ctx, u, info)
}

func (s *Service) failLogin(ctx context.Context, email string, info session.RequestInfo) error {
	if err := s.guard.RecordLogin(ctx, email, info.IPAddress, false); err != nil {
		s.logWarn(err, "failed to record login attempt")
	}
	return ErrInvalidCredentials
}

func (s *Service) logWarn(err error, message string) {
	if s.logger != nil {
		s.logger.WithError(err).Warn(message)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}
