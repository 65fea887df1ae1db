package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/pkg/config"
)

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, Key, Rule) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "global", GlobalKey().String())
	assert.Equal(t, "global", Key{Scope: ScopeGlobal, UserID: 5}.String())
	assert.Equal(t, "user:5", UserKey(ScopeUser, 5).String())
	assert.Equal(t, "confirm:5", UserKey(ScopeConfirm, 5).String())
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter()
	start := time.Now()
	now := start
	limiter.now = func() time.Time { return now }
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, UserKey(ScopeBuy, 1), rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		now = now.Add(10 * time.Second)
	}

	result, err := limiter.Check(ctx, UserKey(ScopeBuy, 1), rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 40*time.Second, result.RetryAfter)

	result, err = limiter.Check(ctx, UserKey(ScopeBuy, 2), rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	now = start.Add(61 * time.Second)
	result, err = limiter.Check(ctx, UserKey(ScopeBuy, 1), rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Zero(t, result.Remaining)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()
	rule := Rule{Limit: 5, Window: time.Minute}

	_, err := limiter.Check(ctx, UserKey(ScopeUser, 1), rule)
	require.NoError(t, err)
	now = now.Add(10 * time.Minute)
	_, err = limiter.Check(ctx, UserKey(ScopeUser, 2), rule)
	require.NoError(t, err)

	assert.Equal(t, 1, limiter.Cleanup(5*time.Minute))
	assert.Len(t, limiter.hits, 1)
}

func TestAdaptiveLimiter_RejectsFromPrimary(t *testing.T) {
	client, _ := newRedis(t)
	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(), testLogger())
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Minute}

	_, err := limiter.Check(ctx, UserKey(ScopeConfirm, 1), rule)
	require.NoError(t, err)

	result, err := limiter.Check(ctx, UserKey(ScopeConfirm, 1), rule)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestAdaptiveLimiter_FallsBackWithStricterLimit(t *testing.T) {
	limiter := NewAdaptiveLimiter(failingLimiter{}, NewMemoryLimiter(), testLogger())
	ctx := context.Background()
	rule := Rule{Limit: 4, Window: time.Minute}

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, UserKey(ScopeUser, 1), rule)
		require.NoError(t, err)
	}

	_, err := limiter.Check(ctx, UserKey(ScopeUser, 1), rule)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRules(t *testing.T) {
	rules, err := NewRules(config.RateLimitConfig{
		PerUser: config.RateLimitRule{Limit: 30, Window: "1m"},
		Commands: config.RateLimitCommands{
			Buy:     config.RateLimitRule{Limit: 5, Window: "2m"},
			Confirm: config.RateLimitRule{Limit: 10, Window: "30s"},
		},
		Whitelist: []int64{900},
	})
	require.NoError(t, err)

	rule, ok := rules.For(ScopeConfirm)
	require.True(t, ok)
	assert.Equal(t, Rule{Limit: 10, Window: 30 * time.Second}, rule)

	_, ok = rules.For(ScopeGlobal)
	assert.False(t, ok)

	assert.Equal(t, []Key{UserKey(ScopeUser, 1), UserKey(ScopeBuy, 1)}, rules.KeysFor(1, ScopeBuy))
	assert.Equal(t, []Key{UserKey(ScopeUser, 1)}, rules.KeysFor(1, ""))
	assert.Equal(t, 2*time.Minute, rules.LongestWindow())

	assert.True(t, rules.IsWhitelisted(900))
	assert.False(t, rules.IsWhitelisted(1))
}

func TestRules_InvalidWindow(t *testing.T) {
	tests := []struct {
		name   string
		window string
	}{
		{name: "missing", window: ""},
		{name: "garbage", window: "soon"},
		{name: "negative", window: "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRules(config.RateLimitConfig{
				Commands: config.RateLimitCommands{Buy: config.RateLimitRule{Limit: 1, Window: tt.window}},
			})
			assert.Error(t, err)
		})
	}
}
