package raffle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/payment"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
	"github.com/Proton-105/raffle-bot/pkg/metrics"
)

// Outcome is the result of resolving one payment reference.
type Outcome string

const (
	OutcomeUnconfirmed     Outcome = "unconfirmed"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeAllocated       Outcome = "allocated"
	OutcomeAlreadySettled  Outcome = "already_settled"
	OutcomeSupplyExhausted Outcome = "supply_exhausted"
	OutcomeFailed          Outcome = "failed"
)

// Source names what triggered a resolution.
type Source string

const (
	SourceSweep   Source = "sweep"
	SourceConfirm Source = "confirm"
	SourceWebhook Source = "webhook"
)

// Notifier delivers messages to chat users.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, message string) error
	NotifyUserWithTickets(ctx context.Context, userID int64, numbers []int) error
}

// StatsInvalidator drops cached totals after tickets change.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Resolution describes what Resolve did.
type Resolution struct {
	Reference string
	Outcome   Outcome
	Payment   *domain.PendingPayment
	Tickets   []domain.Ticket
}

// Numbers returns the allocated ticket numbers.
func (r *Resolution) Numbers() []int {
	numbers := make([]int, len(r.Tickets))
	for i, t := range r.Tickets {
		numbers[i] = t.TicketNumber
	}
	return numbers
}

// SweepReport summarises one pass over the pending payments.
type SweepReport struct {
	Checked     int
	Allocated   int
	Unconfirmed int
	Skipped     int
	Failed      int
	Duration    time.Duration
}

// Reconciler verifies pending payments with the gateway and allocates tickets
// for those that succeeded.
type Reconciler struct {
	gateway   payment.Gateway
	pending   repository.PendingPaymentRepository
	allocator *Allocator
	notifier  Notifier
	stats     StatsInvalidator
	cfg       config.RaffleConfig
	log       *slog.Logger
}

// NewReconciler wires a Reconciler. stats may be nil.
func NewReconciler(
	gateway payment.Gateway,
	pending repository.PendingPaymentRepository,
	allocator *Allocator,
	notifier Notifier,
	stats StatsInvalidator,
	cfg config.RaffleConfig,
	log *slog.Logger,
) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		gateway:   gateway,
		pending:   pending,
		allocator: allocator,
		notifier:  notifier,
		stats:     stats,
		cfg:       cfg,
		log:       log.With(slog.String("component", "reconciler")),
	}
}

// Resolve verifies reference and, when paid, allocates its tickets exactly once.
// A non-zero expectedUserID restricts resolution to payments owned by that user.
func (r *Reconciler) Resolve(ctx context.Context, reference string, expectedUserID int64, source Source) (*Resolution, error) {
	res, err := r.resolve(ctx, reference, expectedUserID, source)
	metrics.RecordReconciliation(string(source), string(res.Outcome))
	return res, err
}

func (r *Reconciler) resolve(ctx context.Context, reference string, expectedUserID int64, source Source) (*Resolution, error) {
	log := r.log.With(slog.String("reference", reference), slog.String("source", string(source)))
	res := &Resolution{Reference: reference, Outcome: OutcomeUnconfirmed}

	verify := r.gateway.Verify(ctx, reference)
	if !verify.Confirmed() {
		log.Debug("payment not confirmed",
			slog.String("status", verify.Status.String()),
			slog.String("gateway_status", verify.GatewayStatus),
		)
		return res, nil
	}

	pending, err := r.pending.FindByReference(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		res.Outcome = OutcomeNotFound
		log.Info("confirmed payment has no pending record")
		return res, ErrReferenceNotFound
	}
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("find pending payment: %w", err)
	}

	if expectedUserID != 0 && pending.UserID != expectedUserID {
		res.Outcome = OutcomeNotFound
		log.Warn("payment confirmation by non-owner rejected",
			slog.Int64("owner_id", pending.UserID),
			slog.Int64("user_id", expectedUserID),
		)
		return res, ErrReferenceNotFound
	}
	res.Payment = pending

	if verify.Amount > 0 && verify.Amount < pending.Amount {
		log.Warn("paid amount below expected, leaving payment pending",
			slog.Int64("paid", verify.Amount),
			slog.Int64("expected", pending.Amount),
		)
		return res, nil
	}

	tickets, err := r.allocator.Allocate(ctx, *pending)
	switch {
	case err == nil:
		res.Outcome = OutcomeAllocated
		res.Tickets = tickets
		log.Info("tickets allocated",
			slog.Int64("user_id", pending.UserID),
			slog.Any("numbers", res.Numbers()),
		)
		metrics.RecordTicketsAllocated(len(tickets))
		r.afterAllocation(ctx, log, pending.UserID, res.Numbers())
		return res, nil

	case errors.Is(err, ErrAlreadySettled):
		res.Outcome = OutcomeAlreadySettled
		log.Info("payment already settled by a concurrent resolution")
		return res, nil

	case errors.Is(err, ErrInsufficientSupply):
		res.Outcome = OutcomeSupplyExhausted
		log.Error("cannot allocate confirmed payment", slog.Any("error", err))
		r.alertOperators(ctx, log, pending, err)
		return res, err

	default:
		res.Outcome = OutcomeFailed
		log.Error("allocation failed", slog.Any("error", err))
		return res, err
	}
}

func (r *Reconciler) afterAllocation(ctx context.Context, log *slog.Logger, userID int64, numbers []int) {
	if r.stats != nil {
		if err := r.stats.Invalidate(ctx); err != nil {
			log.Warn("failed to invalidate stats cache", slog.Any("error", err))
		}
	}

	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyUser(ctx, userID, r.confirmationMessage(numbers)); err != nil {
		log.Error("failed to notify user of allocation", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	if err := r.notifier.NotifyUserWithTickets(ctx, userID, numbers); err != nil {
		log.Error("failed to deliver ticket images", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (r *Reconciler) confirmationMessage(numbers []int) string {
	labels := make([]string, len(numbers))
	for i, n := range numbers {
		labels[i] = "#" + strconv.Itoa(n)
	}

	return fmt.Sprintf(
		"🎉 Payment confirmed!\n\nYour ticket numbers: %s\n\nGood luck in the %s! 🍀",
		strings.Join(labels, ", "),
		r.cfg.Title,
	)
}

func (r *Reconciler) alertOperators(ctx context.Context, log *slog.Logger, pending *domain.PendingPayment, cause error) {
	if r.notifier == nil {
		return
	}

	message := fmt.Sprintf(
		"⚠️ Confirmed payment %s (user %d, %d tickets) could not be allocated: %v",
		pending.Reference, pending.UserID, pending.TicketCount, cause,
	)
	for _, adminID := range r.cfg.AdminIDs {
		if err := r.notifier.NotifyUser(ctx, adminID, message); err != nil {
			log.Error("failed to alert operator", slog.Int64("admin_id", adminID), slog.Any("error", err))
		}
	}
}

// Sweep resolves every pending payment once. Per-reference errors are logged and
// counted, never returned.
func (r *Reconciler) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	var report SweepReport

	payments, err := r.pending.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending payments: %w", err)
	}

	for _, p := range payments {
		if ctx.Err() != nil {
			break
		}

		report.Checked++
		res, err := r.Resolve(ctx, p.Reference, 0, SourceSweep)
		if errors.Is(err, ErrReferenceNotFound) {
			// Settled by a confirm or webhook after the list was taken.
			report.Skipped++
			continue
		}
		if err != nil {
			report.Failed++
			r.log.Warn("sweep failed to resolve payment", slog.String("reference", p.Reference), slog.Any("error", err))
			continue
		}

		switch res.Outcome {
		case OutcomeAllocated:
			report.Allocated++
		case OutcomeUnconfirmed:
			report.Unconfirmed++
		default:
			report.Skipped++
		}
	}

	report.Duration = time.Since(start)
	metrics.RecordSweep(report.Duration)

	if report.Checked > 0 {
		r.log.Info("sweep finished",
			slog.Int("checked", report.Checked),
			slog.Int("allocated", report.Allocated),
			slog.Int("unconfirmed", report.Unconfirmed),
			slog.Int("failed", report.Failed),
			slog.Duration("duration", report.Duration),
		)
	}

	return report, ctx.Err()
}
