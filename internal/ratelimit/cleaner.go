package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanCount = 100

// Cleaner prunes counters older than the longest configured window, from
// Redis and from the in-memory fallback.
type Cleaner struct {
	client   *redis.Client
	memory   *MemoryLimiter
	maxAge   time.Duration
	interval time.Duration
	log      *slog.Logger
}

// NewCleaner constructs a Cleaner. Either backend may be nil.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, maxAge, interval time.Duration, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		memory:   memory,
		maxAge:   maxAge,
		interval: interval,
		log:      log,
	}
}

// Run prunes on every tick until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.interval <= 0 || c.maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			c.Clean(ctx)
		}
	}
}

// Clean runs one pruning pass and returns the number of counters removed.
func (c *Cleaner) Clean(ctx context.Context) int {
	removed := 0
	if c.memory != nil {
		removed += c.memory.Cleanup(c.maxAge)
	}
	if c.client != nil {
		removed += c.cleanRedis(ctx)
	}

	if removed > 0 {
		c.log.Info("rate limit counters cleaned", slog.Int("removed", removed))
	}
	return removed
}

func (c *Cleaner) cleanRedis(ctx context.Context) int {
	cutoff := time.Now().Add(-c.maxAge).UnixMilli()
	removed := 0

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		pipe := c.client.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff))
		card := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.Warn("rate limit prune failed", slog.String("key", key), slog.Any("error", err))
			continue
		}

		if card.Val() > 0 {
			continue
		}
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		c.log.Error("rate limit scan failed", slog.Any("error", err))
	}

	return removed
}
