package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newWindow(t *testing.T) (SlidingWindow, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return SlidingWindow{R: client, Prefix: "rl:test:"}, mr
}

func TestTakeSlidingWindow(t *testing.T) {
	sw, mr := newWindow(t)
	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		d, err := sw.Take(ctx, "203.0.113.7", window, max)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should pass", i)
		require.Equal(t, max-(i+1), d.Remaining)
	}

	d, err := sw.Take(ctx, "203.0.113.7", window, max)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)

	mr.FastForward(window)

	d, err = sw.Take(ctx, "203.0.113.7", window, max)
	require.NoError(t, err)
	require.True(t, d.Allowed, "window expiry should free the quota")
}

func TestTakeRejectedAttemptsNotRecorded(t *testing.T) {
	sw, _ := newWindow(t)
	ctx := context.Background()
	window := time.Minute
	max := 1

	d, err := sw.Take(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Hammering while over the limit must not grow the bucket.
	for i := 0; i < 5; i++ {
		d, err = sw.Take(ctx, "key", window, max)
		require.NoError(t, err)
		require.False(t, d.Allowed)
	}
	size, err := sw.R.ZCard(ctx, "rl:test:key").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
}

func TestTakeKeysAreIsolated(t *testing.T) {
	sw, _ := newWindow(t)
	ctx := context.Background()

	d, err := sw.Take(ctx, "ip-a", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = sw.Take(ctx, "ip-b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, d.Allowed, "one client's quota must not affect another's")
}
