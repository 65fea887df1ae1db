package raffle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/payment"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
)

const (
	referenceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	referenceIDLength = 12
)

// Buyer identifies the user opening a checkout.
type Buyer struct {
	UserID   int64
	Username string
}

// Checkout is an opened purchase awaiting payment.
type Checkout struct {
	Reference   string
	PaymentURL  string
	Amount      int64
	TicketCount int
}

// PurchaseService opens gateway checkouts and records them as pending payments.
type PurchaseService struct {
	gateway payment.Gateway
	pending repository.PendingPaymentRepository
	tickets repository.TicketRepository
	cfg     config.RaffleConfig
	newID   func() (string, error)
	log     *slog.Logger
}

// NewPurchaseService wires a PurchaseService.
func NewPurchaseService(
	gateway payment.Gateway,
	pending repository.PendingPaymentRepository,
	tickets repository.TicketRepository,
	cfg config.RaffleConfig,
	log *slog.Logger,
) *PurchaseService {
	if log == nil {
		log = slog.Default()
	}
	return &PurchaseService{
		gateway: gateway,
		pending: pending,
		tickets: tickets,
		cfg:     cfg,
		newID: func() (string, error) {
			return gonanoid.Generate(referenceAlphabet, referenceIDLength)
		},
		log: log.With(slog.String("component", "purchase")),
	}
}

// Options returns the purchase options that still fit the remaining supply.
func (s *PurchaseService) Options(ctx context.Context) (options []int, available int, err error) {
	sold, err := s.tickets.CountAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	available = s.cfg.MaxTickets - sold
	if available < 0 {
		available = 0
	}

	for _, n := range s.cfg.PurchaseOptions {
		if n <= available {
			options = append(options, n)
		}
	}
	return options, available, nil
}

// Initiate opens a checkout for ticketCount tickets. The supply check here is
// advisory; allocation re-checks once the payment is confirmed.
func (s *PurchaseService) Initiate(ctx context.Context, buyer Buyer, ticketCount int) (*Checkout, error) {
	if !slices.Contains(s.cfg.PurchaseOptions, ticketCount) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, ticketCount)
	}

	sold, err := s.tickets.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	if sold+ticketCount > s.cfg.MaxTickets {
		available := s.cfg.MaxTickets - sold
		if available < 0 {
			available = 0
		}
		return nil, &SupplyError{Requested: ticketCount, Available: available}
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate reference: %w", err)
	}
	reference := fmt.Sprintf("raffle_%d_%d_%s", buyer.UserID, ticketCount, id)
	amount := int64(ticketCount) * s.cfg.TicketPrice

	log := s.log.With(slog.String("reference", reference), slog.Int64("user_id", buyer.UserID))

	tx, err := s.gateway.Start(ctx, payment.StartRequest{
		Reference: reference,
		Email:     buyerEmail(buyer),
		Amount:    amount,
		Metadata: map[string]any{
			"user_id":          buyer.UserID,
			"ticket_count":     ticketCount,
			"username":         buyer.Username,
			"telegram_user_id": strconv.FormatInt(buyer.UserID, 10),
		},
	})
	if err != nil {
		log.Error("failed to open checkout", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	pending := &domain.PendingPayment{
		Reference:   tx.Reference,
		UserID:      buyer.UserID,
		TicketCount: ticketCount,
		Amount:      amount,
	}
	if err := s.pending.Create(ctx, pending); err != nil {
		log.Error("failed to record pending payment", slog.Any("error", err))
		return nil, fmt.Errorf("record pending payment: %w", err)
	}

	log.Info("checkout opened", slog.Int("tickets", ticketCount), slog.Int64("amount", amount))

	return &Checkout{
		Reference:   tx.Reference,
		PaymentURL:  tx.AuthorizationURL,
		Amount:      amount,
		TicketCount: ticketCount,
	}, nil
}

func buyerEmail(buyer Buyer) string {
	local := strings.TrimPrefix(strings.TrimSpace(buyer.Username), "@")
	if local == "" {
		local = "user" + strconv.FormatInt(buyer.UserID, 10)
	}
	return strings.ToLower(local) + ".telegram@example.com"
}
