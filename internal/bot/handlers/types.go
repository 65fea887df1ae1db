package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/i18n"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/state"
	"github.com/Proton-105/raffle-bot/pkg/config"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Purchases opens checkouts.
type Purchases interface {
	Options(ctx context.Context) (options []int, available int, err error)
	Initiate(ctx context.Context, buyer raffle.Buyer, ticketCount int) (*raffle.Checkout, error)
}

// Resolver settles a payment reference.
type Resolver interface {
	Resolve(ctx context.Context, reference string, expectedUserID int64, source raffle.Source) (*raffle.Resolution, error)
}

// StatsProvider reports raffle totals.
type StatsProvider interface {
	Stats(ctx context.Context) (*domain.Stats, error)
	PrizePool(stats *domain.Stats) int64
}

// TicketLister reads allocated tickets.
type TicketLister interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Ticket, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Ticket, error)
}

// SweepTrigger runs an on-demand reconciliation pass.
type SweepTrigger interface {
	RunOnce(ctx context.Context) raffle.SweepReport
}

// StaleLister reports pending payments nobody has settled for a while.
type StaleLister interface {
	Report(ctx context.Context) ([]domain.PendingPayment, error)
	Threshold() time.Duration
}

// Deps bundles what the raffle handlers need. Sweeps and Stale may be nil, which
// disables the matching operator commands.
type Deps struct {
	Raffle    config.RaffleConfig
	Purchases Purchases
	Resolver  Resolver
	Stats     StatsProvider
	Tickets   TicketLister
	Sweeps    SweepTrigger
	Stale     StaleLister
	FSM       state.StateMachine
	Keyboards *keyboard.Builder
	I18n      *i18n.Manager
	Log       *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

func (d Deps) translator(c telebot.Context) i18n.Translator {
	lang := ""
	if c != nil && c.Sender() != nil {
		lang = c.Sender().LanguageCode
	}
	return d.I18n.Translator(lang)
}

func (d Deps) money(amount int64) string {
	return domain.FormatAmount(amount, d.Raffle.CurrencySymbol)
}

// setState moves the user through the purchase flow. The flow state only drives
// prompts, so failures are logged and the update carries on.
func (d Deps) setState(ctx context.Context, userID int64, next state.State, data map[string]interface{}) {
	if d.FSM == nil {
		return
	}

	var err error
	if next == state.StateIdle {
		err = d.FSM.ClearState(ctx, userID)
	} else {
		err = d.FSM.TransitionTo(ctx, userID, next, data)
	}
	if err != nil {
		d.logger().Warn("failed to update flow state",
			slog.Int64("user_id", userID),
			slog.String("state", string(next)),
			slog.Any("error", err),
		)
	}
}

// reply edits the message behind a callback, or sends a new one for commands.
func reply(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	if c.Callback() == nil {
		return c.Send(text, markup)
	}

	_ = c.Respond()
	err := c.Edit(text, markup)
	if err == nil || errors.Is(err, telebot.ErrSameMessageContent) {
		return nil
	}
	return c.Send(text, markup)
}

func senderID(c telebot.Context) (int64, bool) {
	if c == nil || c.Sender() == nil {
		return 0, false
	}
	return c.Sender().ID, true
}
