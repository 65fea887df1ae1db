package statscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/pkg/redis"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(redis.NewMetricsClient(client), time.Minute), mr
}

func TestCache_RoundTrip(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := &domain.Stats{TotalTickets: 12, TotalUsers: 4, TotalRevenue: 12000, PendingPayments: 2, MaxTickets: 100}
	require.NoError(t, cache.Set(ctx, want))

	got, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, time.Minute, mr.TTL(cacheKey))
}

func TestCache_Expires(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Stats{TotalTickets: 1}))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_Invalidate(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Stats{TotalTickets: 1}))
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists(cacheKey))
}

func TestCache_CorruptEntry(t *testing.T) {
	cache, mr := setupCache(t)
	require.NoError(t, mr.Set(cacheKey, "{not json"))

	_, err := cache.Get(context.Background())
	assert.Error(t, err)
}

func TestCache_NilIsNoop(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	got, err := cache.Get(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, cache.Set(ctx, &domain.Stats{}))
	assert.NoError(t, cache.Invalidate(ctx))
}
