package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/state"
)

// NewCancelHandler resets user state and returns the user to the main menu. An
// open checkout stays pending, so a payment made later is still picked up by the sweep.
func NewCancelHandler(deps Deps) Handler {
	log := deps.logger()

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		deps.setState(context.Background(), userID, state.StateIdle, nil)

		t := deps.translator(c)
		if err := c.Send(t.T("cancel.done"), deps.Keyboards.MainMenu(t)); err != nil {
			log.Error("failed to notify user about cancellation", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}
		return nil
	}
}
