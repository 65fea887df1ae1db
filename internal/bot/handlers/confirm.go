package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/state"
)

// NewConfirmPaymentHandler verifies a checkout on demand. Only the payer may
// confirm their own reference; the ticket images are delivered by the reconciler.
func NewConfirmPaymentHandler(deps Deps) CallbackHandler {
	log := deps.logger()

	return func(c telebot.Context) error {
		if c.Sender() == nil || c.Callback() == nil {
			return nil
		}

		userID := c.Sender().ID
		reference := strings.TrimPrefix(c.Callback().Data, keyboard.CallbackConfirmPayment)
		t := deps.translator(c)
		ctx := context.Background()

		if reference == "" {
			return reply(c, t.T("confirm.not_found"), deps.Keyboards.BackToMenu(t))
		}

		res, err := deps.Resolver.Resolve(ctx, reference, userID, raffle.SourceConfirm)
		if errors.Is(err, raffle.ErrReferenceNotFound) {
			return reply(c, t.T("confirm.not_found"), deps.Keyboards.BackToMenu(t))
		}
		if res == nil {
			res = &raffle.Resolution{Outcome: raffle.OutcomeFailed}
		}

		switch res.Outcome {
		case raffle.OutcomeAllocated:
			deps.setState(ctx, userID, state.StateIdle, nil)
			var amount int64
			if res.Payment != nil {
				amount = res.Payment.Amount
			}
			text := t.Tf("confirm.allocated", map[string]any{
				"Numbers": joinNumbers(res.Numbers()),
				"Amount":  deps.money(amount),
			})
			return reply(c, text, deps.Keyboards.BackToMenu(t))

		case raffle.OutcomeAlreadySettled:
			deps.setState(ctx, userID, state.StateIdle, nil)
			return reply(c, t.T("confirm.already_settled"), deps.Keyboards.BackToMenu(t))

		case raffle.OutcomeUnconfirmed:
			var markup *telebot.ReplyMarkup
			if msg := c.Callback().Message; msg != nil {
				markup = msg.ReplyMarkup
			}
			if markup == nil {
				markup = deps.Keyboards.ConfirmOnly(t, reference)
			}
			return reply(c, t.T("confirm.pending"), markup)

		case raffle.OutcomeSupplyExhausted:
			deps.setState(ctx, userID, state.StateIdle, nil)
			return reply(c, t.T("confirm.supply_exhausted"), deps.Keyboards.BackToMenu(t))

		default:
			log.Error("payment confirmation failed",
				slog.String("reference", reference),
				slog.Int64("user_id", userID),
				slog.Any("error", err),
			)
			return reply(c, t.T("confirm.failed"), deps.Keyboards.ConfirmOnly(t, reference))
		}
	}
}

func joinNumbers(numbers []int) string {
	labels := make([]string, len(numbers))
	for i, n := range numbers {
		labels[i] = "#" + strconv.Itoa(n)
	}
	return strings.Join(labels, ", ")
}
