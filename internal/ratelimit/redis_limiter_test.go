package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestRedisLimiter_ConfirmWindow(t *testing.T) {
	client, mr := newRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	key := UserKey(ScopeConfirm, 42)
	rule := Rule{Limit: 2, Window: time.Minute}

	for want := 1; want >= 0; want-- {
		result, err := limiter.Check(ctx, key, rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, want, result.Remaining)
	}

	result, err := limiter.Check(ctx, key, rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, 50*time.Second)
	assert.LessOrEqual(t, result.RetryAfter, time.Minute)

	// A rejected hit is not recorded.
	members, err := mr.ZMembers("raffle:ratelimit:confirm:42")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	other, err := limiter.Check(ctx, UserKey(ScopeConfirm, 7), rule)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client, _ := newRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Second}

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, GlobalKey(), rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	time.Sleep(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, GlobalKey(), rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_DisabledRuleRejects(t *testing.T) {
	client, _ := newRedis(t)
	limiter := NewRedisLimiter(client, testLogger())

	result, err := limiter.Check(context.Background(), UserKey(ScopeBuy, 1), Rule{Window: time.Minute})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestRedisLimiter_UnavailableRedis(t *testing.T) {
	client, mr := newRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	mr.Close()

	_, err := limiter.Check(context.Background(), UserKey(ScopeBuy, 1), Rule{Limit: 1, Window: time.Minute})
	assert.Error(t, err)
}

func TestCleaner_RemovesExpiredCounters(t *testing.T) {
	client, mr := newRedis(t)
	memory := NewMemoryLimiter()
	ctx := context.Background()

	old := time.Now().Add(-time.Hour).UnixMilli()
	_, err := mr.ZAdd("raffle:ratelimit:buy:1", float64(old), "stale")
	require.NoError(t, err)

	fresh := NewRedisLimiter(client, testLogger())
	_, err = fresh.Check(ctx, UserKey(ScopeBuy, 2), Rule{Limit: 5, Window: time.Minute})
	require.NoError(t, err)

	memory.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err = memory.Check(ctx, UserKey(ScopeUser, 3), Rule{Limit: 5, Window: time.Minute})
	require.NoError(t, err)
	memory.now = time.Now

	cleaner := NewCleaner(client, memory, 5*time.Minute, time.Minute, testLogger())
	assert.Equal(t, 2, cleaner.Clean(ctx))

	assert.False(t, mr.Exists("raffle:ratelimit:buy:1"))
	assert.True(t, mr.Exists("raffle:ratelimit:buy:2"))
}
