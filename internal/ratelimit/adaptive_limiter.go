package ratelimit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_ratelimit_decisions_total",
		Help: "Rate limit decisions by scope, backend and result.",
	}, []string{"scope", "backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_ratelimit_backend_errors_total",
		Help: "Primary limiter failures that forced the in-memory fallback.",
	})
)

// AdaptiveLimiter delegates to a primary (Redis) limiter and falls back to a
// stricter in-memory limiter when the primary fails. Rejections surface as
// ErrLimitExceeded.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Check evaluates key with the primary backend, or with half the limit in memory.
func (a *AdaptiveLimiter) Check(ctx context.Context, key Key, rule Rule) (*Result, error) {
	backend := backendRedis
	result, err := a.primary.Check(ctx, key, rule)
	if err != nil {
		backendErrorsTotal.Inc()
		a.log.Warn("redis limiter failed, falling back to in-memory",
			slog.String("key", key.String()),
			slog.Any("error", err),
		)

		backend = backendMemory
		result, err = a.fallback.Check(ctx, key, halve(rule))
		if err != nil {
			return nil, err
		}
	}

	decisionsTotal.WithLabelValues(string(key.Scope), backend, resultLabel(result.Allowed)).Inc()
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

func halve(rule Rule) Rule {
	rule.Limit /= 2
	if rule.Limit <= 0 {
		rule.Limit = 1
	}
	return rule
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "rejected"
}
