package cache

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taskhive/taskhive/pkg/observability"
)

// Local is a process-local LRU in front of the Redis reader. Because keys
// are version-suffixed, entries here can never be served after a bump; the
// broadcast listener just reclaims the memory early.
type Local struct {
	lru *lru.Cache[string, []byte]
}

// NewLocal creates a local cache holding at most size entries.
func NewLocal(size int) (*Local, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Local{lru: c}, nil
}

// Get returns the cached bytes for key.
func (l *Local) Get(key string) ([]byte, bool) {
	return l.lru.Get(key)
}

// Set stores bytes under key.
func (l *Local) Set(key string, data []byte) {
	l.lru.Add(key, data)
}

// EvictPrefix removes every entry whose key starts with prefix and returns
// the number evicted.
func (l *Local) EvictPrefix(prefix string) int {
	evicted := 0
	for _, key := range l.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			l.lru.Remove(key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of cached entries.
func (l *Local) Len() int {
	return l.lru.Len()
}

// Listener subscribes to the invalidation channels and evicts matching
// entries from the local cache. It is purely an optimization: if the
// listener dies, version-suffixed keys keep reads correct and the LRU
// reclaims memory on its own.
type Listener struct {
	redis   *redis.Client
	local   *Local
	prefix  string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewListener creates a broadcast listener for the given local cache.
// prefix must match the Reader's key prefix.
func NewListener(client *redis.Client, local *Local, prefix string, logger *observability.Logger, metrics *observability.Metrics) *Listener {
	if prefix == "" {
		prefix = "taskhive"
	}
	return &Listener{redis: client, local: local, prefix: prefix, logger: logger, metrics: metrics}
}

// Run consumes broadcasts until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.redis.Subscribe(ctx,
		ChannelWorkspace,
		ChannelWorkspaceRole,
		ChannelMembership,
		ChannelInvitations,
	)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(msg.Channel, msg.Payload)
		}
	}
}

func (l *Listener) handle(channel, payload string) {
	kind, ok := channelKinds[channel]
	if !ok {
		return
	}
	// The trailing separator keeps id 4 from matching id 42.
	evicted := l.local.EvictPrefix(l.prefix + ":" + kind + ":" + payload + ":")
	if evicted > 0 && l.metrics != nil {
		l.metrics.LocalEvictionsTotal.Add(float64(evicted))
	}
	if l.logger != nil {
		l.logger.WithField("channel", channel).WithField("evicted", evicted).Debug("processed invalidation broadcast")
	}
}

// channelKinds maps broadcast channels to the key kind they invalidate.
var channelKinds = map[string]string{
	ChannelWorkspace:     "workspace",
	ChannelWorkspaceRole: "workspace-role",
	ChannelMembership:    "membership",
	ChannelInvitations:   "user-invitations",
}
