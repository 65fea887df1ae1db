// Package statscache keeps the latest raffle totals in Redis.
package statscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/pkg/redis"
)

const (
	cacheKey   = "raffle:stats"
	DefaultTTL = 30 * time.Second
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache provides Redis-backed caching for raffle stats.
type Cache struct {
	store Store
	ttl   time.Duration
}

// NewCache constructs a stats cache. A non-positive ttl falls back to DefaultTTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// Get fetches the cached snapshot. A miss returns nil, nil.
func (c *Cache) Get(ctx context.Context) (*domain.Stats, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}

	data, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached stats: %w", err)
	}

	var stats domain.Stats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}

	return &stats, nil
}

// Set stores the snapshot for the cache TTL.
func (c *Cache) Set(ctx context.Context, stats *domain.Stats) error {
	if c == nil || c.store == nil || stats == nil {
		return nil
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats for cache: %w", err)
	}

	if err := c.store.Set(ctx, cacheKey, payload, c.ttl); err != nil {
		return fmt.Errorf("set cached stats: %w", err)
	}

	return nil
}

// Invalidate removes the cached snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}

	if err := c.store.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("delete cached stats: %w", err)
	}

	return nil
}
