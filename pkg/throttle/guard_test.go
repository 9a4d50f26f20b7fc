package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/store"
)

type recordedLogin struct {
	identifier string
	succeeded  bool
	at         time.Time
}

type recordedReset struct {
	identifier string
	ip         string
	at         time.Time
}

// fakeAttempts is an in-memory AttemptStore stamping rows with an
// injectable clock so tests can slide the window.
type fakeAttempts struct {
	clock  func() time.Time
	logins []recordedLogin
	resets []recordedReset
}

func (s *fakeAttempts) RecordLoginAttempt(_ context.Context, a *store.LoginAttempt) error {
	s.logins = append(s.logins, recordedLogin{a.Identifier, a.Succeeded, s.clock()})
	return nil
}

func (s *fakeAttempts) CountFailedLogins(_ context.Context, identifier string, since time.Time) (int, error) {
	n := 0
	for _, l := range s.logins {
		if l.identifier == identifier && !l.succeeded && !l.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *fakeAttempts) RecordResetAttempt(_ context.Context, a *store.ResetAttempt) error {
	s.resets = append(s.resets, recordedReset{a.Identifier, a.IPAddress, s.clock()})
	return nil
}

func (s *fakeAttempts) CountResetAttempts(_ context.Context, identifier string, since time.Time) (int, error) {
	n := 0
	for _, r := range s.resets {
		if r.identifier == identifier && !r.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *fakeAttempts) CountResetAttemptsByIP(_ context.Context, ip string, since time.Time) (int, error) {
	n := 0
	for _, r := range s.resets {
		if r.ip == ip && !r.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func newTestGuard(t *testing.T) (*Guard, *fakeAttempts, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	attempts := &fakeAttempts{clock: func() time.Time { return *clock }}
	g, err := NewGuard(attempts,
		Limit{Max: 5, Window: 15 * time.Minute},
		Limit{Max: 3, Window: time.Hour},
		Limit{Max: 10, Window: time.Hour},
		nil)
	require.NoError(t, err)
	g.now = func() time.Time { return *clock }
	return g, attempts, clock
}

func TestNewGuardValidatesLimits(t *testing.T) {
	attempts := &fakeAttempts{clock: time.Now}
	ok := Limit{Max: 1, Window: time.Minute}

	_, err := NewGuard(nil, ok, ok, ok, nil)
	assert.Error(t, err)
	_, err = NewGuard(attempts, Limit{Max: 0, Window: time.Minute}, ok, ok, nil)
	assert.Error(t, err)
	_, err = NewGuard(attempts, ok, Limit{Max: 3, Window: 0}, ok, nil)
	assert.Error(t, err)
	_, err = NewGuard(attempts, ok, ok, Limit{Max: -1, Window: time.Minute}, nil)
	assert.Error(t, err)
}

func TestLoginThrottleTripsAtMax(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, g.RecordLogin(ctx, "a@example.com", "198.51.100.1", false))
		throttled, err := g.IsLoginThrottled(ctx, "a@example.com")
		require.NoError(t, err)
		assert.False(t, throttled, "after %d failures", i+1)
	}

	require.NoError(t, g.RecordLogin(ctx, "a@example.com", "198.51.100.1", false))
	throttled, err := g.IsLoginThrottled(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, throttled, "fifth failure trips the limit")
}

func TestLoginThrottleIgnoresSuccesses(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, g.RecordLogin(ctx, "a@example.com", "198.51.100.1", true))
	}
	throttled, err := g.IsLoginThrottled(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, throttled)
}

func TestLoginThrottleWindowSlides(t *testing.T) {
	g, _, clock := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.RecordLogin(ctx, "a@example.com", "198.51.100.1", false))
	}
	throttled, err := g.IsLoginThrottled(ctx, "a@example.com")
	require.NoError(t, err)
	require.True(t, throttled)

	// Old failures age out; no explicit reset happens.
	*clock = clock.Add(16 * time.Minute)
	throttled, err = g.IsLoginThrottled(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, throttled)
}

func TestLoginThrottlePerIdentifier(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.RecordLogin(ctx, "a@example.com", "198.51.100.1", false))
	}
	throttled, err := g.IsLoginThrottled(ctx, "b@example.com")
	require.NoError(t, err)
	assert.False(t, throttled, "other identifiers are unaffected")
}

func TestResetThrottle(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.RecordReset(ctx, "a@example.com", "198.51.100.1"))
	}
	throttled, err := g.IsResetThrottled(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, throttled)

	throttled, err = g.IsResetThrottled(ctx, "b@example.com")
	require.NoError(t, err)
	assert.False(t, throttled)
}

func TestResetIPThrottleIsIndependent(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	// Spray ten different identifiers from the same address.
	for i := 0; i < 10; i++ {
		id := string(rune('a'+i)) + "@example.com"
		require.NoError(t, g.RecordReset(ctx, id, "198.51.100.1"))
	}

	throttled, err := g.IsIPThrottled(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, throttled, "per-IP cap catches identifier rotation")

	// No single identifier crossed its own cap.
	throttled, err = g.IsResetThrottled(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, throttled)
}
