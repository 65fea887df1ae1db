package raffle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
	"github.com/Proton-105/raffle-bot/pkg/metrics"
)

// StatsCache stores the latest Stats snapshot. Get returns nil on a miss.
type StatsCache interface {
	Get(ctx context.Context) (*domain.Stats, error)
	Set(ctx context.Context, stats *domain.Stats) error
	Invalidate(ctx context.Context) error
}

// StatsService computes raffle totals.
type StatsService struct {
	tickets repository.TicketRepository
	pending repository.PendingPaymentRepository
	cache   StatsCache
	cfg     config.RaffleConfig
	log     *slog.Logger
}

// NewStatsService wires a StatsService. cache may be nil.
func NewStatsService(
	tickets repository.TicketRepository,
	pending repository.PendingPaymentRepository,
	cache StatsCache,
	cfg config.RaffleConfig,
	log *slog.Logger,
) *StatsService {
	if log == nil {
		log = slog.Default()
	}
	return &StatsService{tickets: tickets, pending: pending, cache: cache, cfg: cfg, log: log}
}

// Stats returns the current totals, served from cache when possible.
func (s *StatsService) Stats(ctx context.Context) (*domain.Stats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("stats cache read failed", slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			s.log.Warn("stats cache write failed", slog.Any("error", err))
		}
	}

	return stats, nil
}

func (s *StatsService) compute(ctx context.Context) (*domain.Stats, error) {
	total, err := s.tickets.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	users, err := s.tickets.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count ticket owners: %w", err)
	}
	pending, err := s.pending.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending payments: %w", err)
	}

	metrics.SetTicketsSold(total)
	metrics.SetPendingPayments(pending)

	return &domain.Stats{
		TotalTickets:    total,
		TotalUsers:      users,
		TotalRevenue:    int64(total) * s.cfg.TicketPrice,
		PendingPayments: pending,
		MaxTickets:      s.cfg.MaxTickets,
	}, nil
}

// Invalidate drops the cached snapshot.
func (s *StatsService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// PrizePool returns the configured share of revenue paid out to the winner.
func (s *StatsService) PrizePool(stats *domain.Stats) int64 {
	return PrizePool(stats.TotalRevenue, s.cfg.PrizePoolPercent)
}

// PrizePool returns percent of revenue.
func PrizePool(revenue int64, percent int) int64 {
	return revenue * int64(percent) / 100
}
