package raffle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
	"github.com/Proton-105/raffle-bot/pkg/metrics"
)

// Allocator turns a confirmed pending payment into distinct ticket numbers.
// It holds no lock of its own: the store's Settle claim admits one winner per
// reference and the ticket number uniqueness constraint rejects overlapping draws,
// which are redrawn up to retries times.
type Allocator struct {
	tickets    repository.TicketRepository
	maxTickets int
	retries    int
	randInt    RandomIntFunc
	log        *slog.Logger
}

// NewAllocator creates an Allocator for numbers 1..cfg.MaxTickets.
func NewAllocator(tickets repository.TicketRepository, cfg config.RaffleConfig, log *slog.Logger) *Allocator {
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{
		tickets:    tickets,
		maxTickets: cfg.MaxTickets,
		retries:    cfg.AllocationRetries,
		randInt:    drawRandomInt,
		log:        log.With(slog.String("component", "allocator")),
	}
}

// Allocate draws payment.TicketCount unused numbers and settles them against the
// payment's reference. The pending record is left untouched on every error.
func (a *Allocator) Allocate(ctx context.Context, payment domain.PendingPayment) ([]domain.Ticket, error) {
	if payment.TicketCount <= 0 {
		return nil, fmt.Errorf("allocate %s: %w", payment.Reference, ErrInvalidQuantity)
	}

	for attempt := 0; ; attempt++ {
		allocated, err := a.tickets.AllocatedNumbers(ctx)
		if err != nil {
			return nil, fmt.Errorf("load allocated numbers: %w", err)
		}

		available := availableNumbers(a.maxTickets, allocated)
		if len(available) < payment.TicketCount {
			return nil, &SupplyError{Requested: payment.TicketCount, Available: len(available)}
		}

		numbers, err := SampleWithoutReplacement(available, payment.TicketCount, a.randInt)
		if err != nil {
			return nil, err
		}

		tickets, err := a.tickets.Settle(ctx, payment.Reference, payment.UserID, numbers)
		if errors.Is(err, ErrAllocationConflict) && attempt < a.retries {
			metrics.RecordAllocationRetry()
			a.log.Warn("ticket number conflict, redrawing",
				slog.String("reference", payment.Reference),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		return tickets, err
	}
}

// Available returns how many numbers are still unallocated.
func (a *Allocator) Available(ctx context.Context) (int, error) {
	sold, err := a.tickets.CountAll(ctx)
	if err != nil {
		return 0, err
	}
	if remaining := a.maxTickets - sold; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func availableNumbers(maxTickets int, allocated map[int]struct{}) []int {
	available := make([]int, 0, maxTickets)
	for n := 1; n <= maxTickets; n++ {
		if _, taken := allocated[n]; !taken {
			available = append(available, n)
		}
	}
	return available
}
