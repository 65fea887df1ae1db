package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/state"
)

// NewStartHandler resets the purchase flow and shows the main menu.
func NewStartHandler(deps Deps) Handler {
	log := deps.logger()

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("start handler invoked without sender")
			return nil
		}

		ctx := context.Background()
		deps.setState(ctx, userID, state.StateIdle, nil)

		text, err := welcomeText(ctx, deps, c)
		if err != nil {
			return err
		}
		return reply(c, text, deps.Keyboards.MainMenu(deps.translator(c)))
	}
}

// NewInfoHandler shows the raffle summary.
func NewInfoHandler(deps Deps) Handler {
	return func(c telebot.Context) error {
		ctx := context.Background()

		stats, err := deps.Stats.Stats(ctx)
		if err != nil {
			return err
		}

		t := deps.translator(c)
		text := t.Tf("info.text", map[string]any{
			"Title":      deps.Raffle.Title,
			"MaxTickets": deps.Raffle.MaxTickets,
			"Sold":       stats.TotalTickets,
			"Price":      deps.money(deps.Raffle.TicketPrice),
			"PrizePool":  deps.money(deps.Stats.PrizePool(stats)),
		})
		return reply(c, text, deps.Keyboards.BackToMenu(t))
	}
}

// NewHelpHandler explains the purchase flow. Operators also get their command list.
func NewHelpHandler(deps Deps) Handler {
	return func(c telebot.Context) error {
		t := deps.translator(c)
		text := t.T("help.text")

		if userID, ok := senderID(c); ok && deps.Raffle.IsAdmin(userID) {
			age := "a while"
			if deps.Stale != nil {
				age = deps.Stale.Threshold().String()
			}
			text += "\n\n" + t.Tf("admin_help.text", map[string]any{"Age": age})
		}

		return c.Send(text)
	}
}

// NewAwaitingPaymentHandler answers free text while a checkout is open.
func NewAwaitingPaymentHandler(deps Deps) Handler {
	log := deps.logger()

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		reference := ""
		if deps.FSM != nil {
			st, err := deps.FSM.GetState(context.Background(), userID)
			if err != nil {
				log.Warn("failed to load flow state", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			reference = st.Reference()
		}

		t := deps.translator(c)
		if reference == "" {
			return c.Send(t.T("checkout.reminder_no_ref"), deps.Keyboards.MainMenu(t))
		}
		return c.Send(t.Tf("checkout.reminder", map[string]any{"Reference": reference}), deps.Keyboards.ConfirmOnly(t, reference))
	}
}

func welcomeText(ctx context.Context, deps Deps, c telebot.Context) (string, error) {
	stats, err := deps.Stats.Stats(ctx)
	if err != nil {
		return "", err
	}

	name := "there"
	if c.Sender() != nil && c.Sender().FirstName != "" {
		name = c.Sender().FirstName
	}

	return deps.translator(c).Tf("menu.welcome", map[string]any{
		"Title":      deps.Raffle.Title,
		"Name":       name,
		"Price":      deps.money(deps.Raffle.TicketPrice),
		"MaxTickets": deps.Raffle.MaxTickets,
		"Sold":       stats.TotalTickets,
	}), nil
}
