package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/store"
)

// Janitor periodically deletes expired refresh tokens and invitations.
// Purely hygiene: revocation and expiry checks never depend on rows having
// been deleted.
type Janitor struct {
	tokens      store.RefreshTokenStore
	invitations store.InvitationStore
	logger      *observability.Logger
	cron        *cron.Cron
	now         func() time.Time
}

// NewJanitor creates a janitor. Either store may be nil to skip that sweep.
func NewJanitor(tokens store.RefreshTokenStore, invitations store.InvitationStore, logger *observability.Logger) *Janitor {
	return &Janitor{
		tokens:      tokens,
		invitations: invitations,
		logger:      logger,
		cron:        cron.New(),
		now:         time.Now,
	}
}

// Start schedules the hourly sweep and begins running it.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("@hourly", j.sweep); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts scheduling and waits for any running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	j.Sweep(ctx)
}

// Sweep runs one cleanup pass immediately.
func (j *Janitor) Sweep(ctx context.Context) {
	now := j.now().UTC()

	if j.tokens != nil {
		n, err := j.tokens.DeleteExpiredBefore(ctx, now)
		if err != nil {
			j.logger.WithError(err).Error("failed to delete expired refresh tokens")
		} else if n > 0 {
			j.logger.WithField("deleted", n).Info("deleted expired refresh tokens")
		}
	}

	if j.invitations != nil {
		n, err := j.invitations.DeleteExpiredInvitations(ctx, now)
		if err != nil {
			j.logger.WithError(err).Error("failed to delete expired invitations")
		} else if n > 0 {
			j.logger.WithField("deleted", n).Info("deleted expired invitations")
		}
	}
}
