package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestCheck_FixedWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = fixedClock(start)

	l := New(store, map[string]Config{
		"default": {Limit: 100, Window: 15 * time.Minute},
	})
	l.now = fixedClock(start)

	ctx := context.Background()
	for i := 1; i <= 100; i++ {
		res, err := l.Check(ctx, "default", "tenant-a")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be admitted", i)
		assert.Equal(t, 100-i, res.Remaining)
	}

	// The 101st request in the same window is rejected, and the caller
	// can retry no later than the end of the window.
	res, err := l.Check(ctx, "default", "tenant-a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.LessOrEqual(t, res.ResetAt.Sub(start), 15*time.Minute)
	assert.Greater(t, res.ResetAt.Sub(start), time.Duration(0))
}

func TestCheck_WindowRollover(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = fixedClock(start)

	l := New(store, map[string]Config{
		"default": {Limit: 1, Window: time.Minute},
	})
	l.now = fixedClock(start)

	ctx := context.Background()
	res, err := l.Check(ctx, "default", "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Check(ctx, "default", "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// Next window: counter starts fresh.
	later := start.Add(time.Minute)
	l.now = fixedClock(later)
	store.now = fixedClock(later)

	res, err = l.Check(ctx, "default", "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheck_TiersAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, map[string]Config{
		"default": {Limit: 100, Window: time.Minute},
		"strict":  {Limit: 1, Window: time.Minute},
	})

	ctx := context.Background()
	res, err := l.Check(ctx, "strict", "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Check(ctx, "strict", "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "strict tier exhausted")

	// Same key under the default tier has its own counter.
	res, err = l.Check(ctx, "default", "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 99, res.Remaining)
}

func TestCheck_UnknownTierFallsBackToDefault(t *testing.T) {
	l := New(NewMemoryStore(), map[string]Config{
		"default": {Limit: 5, Window: time.Minute},
	})

	res, err := l.Check(context.Background(), "no-such-tier", "k")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Limit)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestCheck_StoreFailureIsExplicit(t *testing.T) {
	l := New(failingStore{}, map[string]Config{
		"default": {Limit: 5, Window: time.Minute},
	})

	_, err := l.Check(context.Background(), "default", "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestRedisStore_Incr(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "rl:test", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Expiry is armed on first increment, so the window cleans itself up.
	ttl := mr.TTL("rl:test")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(2 * time.Minute)
	got, err := store.Incr(ctx, "rl:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counter should restart after expiry")
}
