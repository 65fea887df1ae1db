package raffle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/metrics"
)

// StaleReporter surfaces pending payments that were never confirmed. Records are
// reported, never deleted: a late payment can still be reconciled.
type StaleReporter struct {
	pending repository.PendingPaymentRepository
	after   time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewStaleReporter reports payments pending for longer than after.
func NewStaleReporter(pending repository.PendingPaymentRepository, after time.Duration, log *slog.Logger) *StaleReporter {
	if log == nil {
		log = slog.Default()
	}
	return &StaleReporter{
		pending: pending,
		after:   after,
		now:     time.Now,
		log:     log.With(slog.String("component", "stale_reporter")),
	}
}

// Threshold returns the configured age.
func (s *StaleReporter) Threshold() time.Duration {
	return s.after
}

// Report lists stale payments, oldest first, and updates the stale gauge.
func (s *StaleReporter) Report(ctx context.Context) ([]domain.PendingPayment, error) {
	stale, err := s.pending.ListOlderThan(ctx, s.now().Add(-s.after))
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}

	metrics.SetStalePayments(len(stale))
	if len(stale) > 0 {
		s.log.Info("stale pending payments", slog.Int("count", len(stale)), slog.Duration("older_than", s.after))
	}

	return stale, nil
}
