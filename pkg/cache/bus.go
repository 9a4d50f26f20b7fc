package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/taskhive/taskhive/pkg/observability"
)

// Bus performs bump-and-broadcast invalidation. The version bump is the
// actual invalidation and must be acknowledged before the surrounding
// mutation reports success; the broadcast is advisory, consumed by
// process-local caches on other instances.
type Bus struct {
	versions *VersionStore
	redis    *redis.Client
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewBus creates an invalidation bus sharing the version store's Redis
// client for publishing.
func NewBus(versions *VersionStore, client *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *Bus {
	return &Bus{versions: versions, redis: client, logger: logger, metrics: metrics}
}

// Invalidate bumps every version key, then publishes payload on the channel.
// A failed bump aborts and bubbles up so the caller never reports success
// while a stale version is still being served; a failed publish is logged
// and dropped.
func (b *Bus) Invalidate(ctx context.Context, channel, payload string, keys ...string) error {
	for _, key := range keys {
		if _, err := b.versions.Bump(ctx, key); err != nil {
			return fmt.Errorf("invalidation bump failed: %w", err)
		}
	}

	if err := b.redis.Publish(ctx, channel, payload).Err(); err != nil {
		// Advisory only. Subsequent reads recompute off the bumped version.
		if b.metrics != nil {
			b.metrics.BroadcastsDropped.Inc()
		}
		if b.logger != nil {
			b.logger.WithError(err).WithField("channel", channel).Debug("invalidation broadcast dropped")
		}
		return nil
	}
	if b.metrics != nil {
		b.metrics.BroadcastsTotal.WithLabelValues(channel).Inc()
	}
	return nil
}

// InvalidateMembership bumps the membership and workspace-role counters for
// one user/workspace pair and broadcasts on the membership channel.
func (b *Bus) InvalidateMembership(ctx context.Context, userID, workspaceID int64) error {
	payload := fmt.Sprintf("%d:%d", userID, workspaceID)
	return b.Invalidate(ctx, ChannelMembership, payload,
		MembershipKey(userID, workspaceID),
		WorkspaceRoleKey(workspaceID),
	)
}

// InvalidateWorkspace bumps the workspace counter and broadcasts.
func (b *Bus) InvalidateWorkspace(ctx context.Context, workspaceID int64) error {
	return b.Invalidate(ctx, ChannelWorkspace, fmt.Sprintf("%d", workspaceID),
		WorkspaceKey(workspaceID))
}

// InvalidateUserInvitations bumps the invitations counter for a user and
// broadcasts.
func (b *Bus) InvalidateUserInvitations(ctx context.Context, userID int64) error {
	return b.Invalidate(ctx, ChannelInvitations, fmt.Sprintf("%d", userID),
		UserInvitationsKey(userID))
}
