package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestGetOrInitStartsAtOne(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)
	ctx := context.Background()

	v, err := store.GetOrInit(ctx, WorkspaceKey(42))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// Stable across repeated reads.
	v, err = store.GetOrInit(ctx, WorkspaceKey(42))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestGetOrInitNeverReturnsZero(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)
	ctx := context.Background()

	// 0 is reserved for "uninitialized" consumers; a stored 0 is treated as
	// corruption and reset.
	mr.Set("test:ver:workspace:7", "0")
	v, err := store.GetOrInit(ctx, WorkspaceKey(7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestGetOrInitResetsCorruptValue(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)
	ctx := context.Background()

	mr.Set("test:ver:membership:1:2", "garbage")
	v, err := store.GetOrInit(ctx, MembershipKey(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// The reset is durable: the next bump continues from the baseline.
	v, err = store.Bump(ctx, MembershipKey(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestBumpIncrements(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)
	ctx := context.Background()

	v, err := store.GetOrInit(ctx, WorkspaceKey(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	v, err = store.Bump(ctx, WorkspaceKey(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	v, err = store.GetOrInit(ctx, WorkspaceKey(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestBumpWithoutInitStartsCounting(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)

	// INCR on a missing key yields 1; the first read after sees it.
	v, err := store.Bump(context.Background(), WorkspaceKey(9))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestConcurrentBumpsNeverLoseIncrements(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)
	ctx := context.Background()

	initial, err := store.GetOrInit(ctx, WorkspaceKey(5))
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Bump(ctx, WorkspaceKey(5)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("bump failed: %v", err)
	}

	final, err := store.GetOrInit(ctx, WorkspaceKey(5))
	require.NoError(t, err)
	assert.Equal(t, initial+n, final)
}

func TestVersionKeysAreIndependent(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewVersionStore(client, "test", nil)
	ctx := context.Background()

	_, err := store.Bump(ctx, MembershipKey(1, 10))
	require.NoError(t, err)
	_, err = store.Bump(ctx, MembershipKey(1, 10))
	require.NoError(t, err)

	v, err := store.GetOrInit(ctx, MembershipKey(2, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "sibling key must be untouched")
}
