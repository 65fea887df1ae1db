package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/state"
)

// NewBuyMenuHandler lists the purchase options that still fit the remaining supply.
func NewBuyMenuHandler(deps Deps) CallbackHandler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		ctx := context.Background()
		counts, available, err := deps.Purchases.Options(ctx)
		if err != nil {
			return err
		}

		t := deps.translator(c)
		if len(counts) == 0 {
			deps.setState(ctx, userID, state.StateIdle, nil)
			return reply(c, t.T("buy.sold_out"), deps.Keyboards.BackToMenu(t))
		}

		options := make([]keyboard.Option, len(counts))
		for i, n := range counts {
			options[i] = keyboard.Option{Count: n, Price: deps.money(int64(n) * deps.Raffle.TicketPrice)}
		}

		deps.setState(ctx, userID, state.StateChoosingQuantity, nil)

		text := t.Tf("buy.menu", map[string]any{
			"Available": available,
			"Price":     deps.money(deps.Raffle.TicketPrice),
		})
		return reply(c, text, deps.Keyboards.BuyOptions(t, options))
	}
}

// NewQuantityHandler opens a gateway checkout for the chosen bundle.
func NewQuantityHandler(deps Deps) CallbackHandler {
	log := deps.logger()

	return func(c telebot.Context) error {
		if c.Sender() == nil || c.Callback() == nil {
			return nil
		}

		t := deps.translator(c)
		_, data, _ := keyboard.DecodeCallback(c.Callback().Data)
		count, err := strconv.Atoi(data)
		if err != nil || count <= 0 {
			return reply(c, t.T("checkout.invalid_quantity"), deps.Keyboards.BackToMenu(t))
		}

		ctx := context.Background()
		buyer := raffle.Buyer{UserID: c.Sender().ID, Username: c.Sender().Username}

		checkout, err := deps.Purchases.Initiate(ctx, buyer, count)
		if err != nil {
			var supplyErr *raffle.SupplyError
			switch {
			case errors.As(err, &supplyErr):
				return reply(c, t.Tf("checkout.not_enough", map[string]any{"Available": supplyErr.Available}), deps.Keyboards.BackToMenu(t))
			case errors.Is(err, raffle.ErrInvalidQuantity):
				return reply(c, t.T("checkout.invalid_quantity"), deps.Keyboards.BackToMenu(t))
			case errors.Is(err, raffle.ErrGatewayUnavailable):
				log.Error("checkout failed", slog.Int64("user_id", buyer.UserID), slog.Any("error", err))
				return reply(c, t.T("checkout.failed"), deps.Keyboards.BackToMenu(t))
			default:
				return err
			}
		}

		deps.setState(ctx, buyer.UserID, state.StateAwaitingPayment, map[string]interface{}{
			state.KeyReference:   checkout.Reference,
			state.KeyTicketCount: checkout.TicketCount,
		})

		text := t.Tf("checkout.created", map[string]any{
			"Count":  checkout.TicketCount,
			"Amount": deps.money(checkout.Amount),
		})
		return reply(c, text, deps.Keyboards.Checkout(t, checkout.PaymentURL, checkout.Reference))
	}
}
