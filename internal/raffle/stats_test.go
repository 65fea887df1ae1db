package raffle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

type memoryStatsCache struct {
	stats       *domain.Stats
	sets        int
	invalidated int
}

func (c *memoryStatsCache) Get(context.Context) (*domain.Stats, error) {
	return c.stats, nil
}

func (c *memoryStatsCache) Set(_ context.Context, stats *domain.Stats) error {
	c.sets++
	c.stats = stats
	return nil
}

func (c *memoryStatsCache) Invalidate(context.Context) error {
	c.invalidated++
	c.stats = nil
	return nil
}

func TestStatsService_Compute(t *testing.T) {
	cfg := testRaffleConfig(100)
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.addPending(t, "R1", 1, 2)
	f.addPending(t, "R2", 2, 1)
	f.addPending(t, "R3", 1, 5)
	f.gateway.confirm("R1", "R2")

	_, err := f.reconciler.Sweep(ctx)
	require.NoError(t, err)

	stats, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTickets)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, int64(3000), stats.TotalRevenue)
	assert.Equal(t, 1, stats.PendingPayments)
	assert.Equal(t, 97, stats.Available())
	assert.Equal(t, int64(2400), f.stats.PrizePool(stats))
}

func TestStatsService_UsesCacheUntilInvalidated(t *testing.T) {
	cfg := testRaffleConfig(100)
	f := newFixture(t, cfg)
	cache := &memoryStatsCache{}
	f.stats = NewStatsService(f.mem.Tickets(), f.mem.Pending(), cache, cfg, testLogger())
	f.reconciler = NewReconciler(f.gateway, f.mem.Pending(), f.allocator, f.notifier, f.stats, cfg, testLogger())
	ctx := context.Background()

	first, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.TotalTickets)
	assert.Equal(t, 1, cache.sets)

	_, err = f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read should be served from cache")

	f.addPending(t, "R1", 1, 2)
	f.gateway.confirm("R1")
	_, err = f.reconciler.Resolve(ctx, "R1", 0, SourceSweep)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	fresh, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TotalTickets)
}

func TestPrizePool(t *testing.T) {
	assert.Equal(t, int64(8000), PrizePool(10000, 80))
	assert.Equal(t, int64(0), PrizePool(0, 80))
	assert.Equal(t, int64(10000), PrizePool(10000, 100))
}
