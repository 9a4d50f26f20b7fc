package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/store"
)

// Limit is one sliding-window rule: at most Max matching attempts within
// Window of now.
type Limit struct {
	Max    int
	Window time.Duration
}

func (l Limit) validate(name string) error {
	if l.Max <= 0 {
		return fmt.Errorf("throttle: %s max must be positive", name)
	}
	if l.Window <= 0 {
		return fmt.Errorf("throttle: %s window must be positive", name)
	}
	return nil
}

// Guard answers "is this identifier currently throttled" by counting
// attempt rows inside a wall-clock window.
type Guard struct {
	attempts store.AttemptStore
	login    Limit
	reset    Limit
	resetIP  Limit
	now      func() time.Time
	metrics  *observability.Metrics
}

// NewGuard creates a guard with the three configured limits.
func NewGuard(attempts store.AttemptStore, login, reset, resetIP Limit, metrics *observability.Metrics) (*Guard, error) {
	if attempts == nil {
		return nil, errors.New("throttle: attempt store is required")
	}
	if err := login.validate("login"); err != nil {
		return nil, err
	}
	if err := reset.validate("reset"); err != nil {
		return nil, err
	}
	if err := resetIP.validate("reset-ip"); err != nil {
		return nil, err
	}
	return &Guard{
		attempts: attempts,
		login:    login,
		reset:    reset,
		resetIP:  resetIP,
		now:      time.Now,
		metrics:  metrics,
	}, nil
}

// IsLoginThrottled reports whether the identifier has accumulated too many
// failed logins inside the window. Successful attempts never count.
func (g *Guard) IsLoginThrottled(ctx context.Context, identifier string) (bool, error) {
	since := g.now().UTC().Add(-g.login.Window)
	n, err := g.attempts.CountFailedLogins(ctx, identifier, since)
	if err != nil {
		return false, fmt.Errorf("failed to count login attempts: %w", err)
	}
	return g.throttled(n >= g.login.Max, "login"), nil
}

// IsResetThrottled reports whether the identifier has requested too many
// password resets inside the window.
func (g *Guard) IsResetThrottled(ctx context.Context, identifier string) (bool, error) {
	since := g.now().UTC().Add(-g.reset.Window)
	n, err := g.attempts.CountResetAttempts(ctx, identifier, since)
	if err != nil {
		return false, fmt.Errorf("failed to count reset attempts: %w", err)
	}
	return g.throttled(n >= g.reset.Max, "reset"), nil
}

// IsIPThrottled reports whether the source IP has requested too many
// password resets inside the window, independent of identifier.
func (g *Guard) IsIPThrottled(ctx context.Context, ip string) (bool, error) {
	since := g.now().UTC().Add(-g.resetIP.Window)
	n, err := g.attempts.CountResetAttemptsByIP(ctx, ip, since)
	if err != nil {
		return false, fmt.Errorf("failed to count reset attempts by ip: %w", err)
	}
	return g.throttled(n >= g.resetIP.Max, "reset_ip"), nil
}

// RecordLogin appends a login attempt after its outcome is known.
func (g *Guard) RecordLogin(ctx context.Context, identifier, ip string, succeeded bool) error {
	err := g.attempts.RecordLoginAttempt(ctx, &store.LoginAttempt{
		Identifier: identifier,
		Succeeded:  succeeded,
		IPAddress:  ip,
	})
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// RecordReset appends a password-reset request.
func (g *Guard) RecordReset(ctx context.Context, identifier, ip string) error {
	err := g.attempts.RecordResetAttempt(ctx, &store.ResetAttempt{
		Identifier: identifier,
		IPAddress:  ip,
	})
	if err != nil {
		return fmt.Errorf("failed to record reset attempt: %w", err)
	}
	return nil
}

func (g *Guard) throttled(hit bool, kind string) bool {
	if hit && g.metrics != nil {
		g.metrics.ThrottleRejectionsTotal.WithLabelValues(kind).Inc()
	}
	return hit
}
