package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskhive/taskhive/pkg/observability"
)

// VersionStore backs the cache-versioning protocol with Redis atomic
// counters. One integer key per (kind, id) pair. Versions start at 1 and
// only ever increase; 0 is reserved to mean "uninitialized" and is never
// returned, so a zero-initialized consumer can never match a legitimate
// cached version.
type VersionStore struct {
	redis   *redis.Client
	prefix  string
	metrics *observability.Metrics
}

// NewVersionStore creates a version store. prefix namespaces the version
// keys in Redis ("taskhive" -> "taskhive:ver:workspace:42").
func NewVersionStore(client *redis.Client, prefix string, metrics *observability.Metrics) *VersionStore {
	if prefix == "" {
		prefix = "taskhive"
	}
	return &VersionStore{redis: client, prefix: prefix, metrics: metrics}
}

func (s *VersionStore) redisKey(key string) string {
	return s.prefix + ":ver:" + key
}

// GetOrInit reads the current version for a key, atomically initializing it
// to 1 when absent. The first read after a cold start or eviction always
// yields a valid baseline. A non-numeric stored value is silently reset to
// 1: version store availability wins over the invalidation signal's
// precision.
func (s *VersionStore) GetOrInit(ctx context.Context, key string) (int64, error) {
	redisKey := s.redisKey(key)

	for attempt := 0; attempt < 2; attempt++ {
		val, err := s.redis.Get(ctx, redisKey).Result()
		if err == redis.Nil {
			ok, err := s.redis.SetNX(ctx, redisKey, 1, 0).Result()
			if err != nil {
				return 0, fmt.Errorf("failed to initialize version %s: %w", key, err)
			}
			if ok {
				return 1, nil
			}
			// Lost the init race; re-read the winner's value.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read version %s: %w", key, err)
		}

		version, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil || version < 1 {
			return s.reset(ctx, redisKey, key)
		}
		return version, nil
	}

	// SetNX lost the race and the winner's key vanished in between. TTL-less
	// keys make this unreachable outside of a FLUSHDB, so a baseline is fine.
	return s.reset(ctx, s.redisKey(key), key)
}

// Bump atomically increments the version for a key and returns the new
// value. Concurrent bumps from multiple instances rely solely on Redis
// INCR; final value after N bumps is always initial + N.
func (s *VersionStore) Bump(ctx context.Context, key string) (int64, error) {
	version, err := s.redis.Incr(ctx, s.redisKey(key)).Result()
	if err != nil {
		if isNotInteger(err) {
			return s.reset(ctx, s.redisKey(key), key)
		}
		return 0, fmt.Errorf("failed to bump version %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.VersionBumpsTotal.WithLabelValues(kindOf(key)).Inc()
	}
	return version, nil
}

func (s *VersionStore) reset(ctx context.Context, redisKey, key string) (int64, error) {
	if err := s.redis.Set(ctx, redisKey, 1, time.Duration(0)).Err(); err != nil {
		return 0, fmt.Errorf("failed to reset version %s: %w", key, err)
	}
	return 1, nil
}

// isNotInteger matches Redis's error for INCR on a non-numeric value.
func isNotInteger(err error) bool {
	return err != nil && err.Error() == "ERR value is not an integer or out of range"
}
