// Package notify delivers allocation notices to Telegram users.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/render"
)

// Sender is the part of telebot.Bot used to deliver messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Renderer draws a ticket image.
type Renderer interface {
	Render(number int) ([]byte, error)
}

// TelegramNotifier sends text and ticket images through the bot.
type TelegramNotifier struct {
	sender   Sender
	renderer Renderer
	log      *slog.Logger
}

// NewTelegramNotifier builds a notifier. renderer may be nil, in which case tickets
// are announced with text captions only.
func NewTelegramNotifier(sender Sender, renderer Renderer, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &TelegramNotifier{
		sender:   sender,
		renderer: renderer,
		log:      log.With(slog.String("component", "notifier")),
	}
}

// NotifyUser sends a plain text message.
func (n *TelegramNotifier) NotifyUser(ctx context.Context, userID int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.sender.Send(telebot.ChatID(userID), message); err != nil {
		return fmt.Errorf("send message to %d: %w", userID, err)
	}
	return nil
}

// NotifyUserWithTickets sends one image per ticket. A ticket whose image cannot be
// rendered is sent as a text caption instead. Delivery continues past failures and
// the joined errors are returned.
func (n *TelegramNotifier) NotifyUserWithTickets(ctx context.Context, userID int64, numbers []int) error {
	var errs []error
	for _, number := range numbers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := n.sendTicket(userID, number); err != nil {
			n.log.Error("failed to deliver ticket",
				slog.Int64("user_id", userID),
				slog.Int("ticket_number", number),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *TelegramNotifier) sendTicket(userID int64, number int) error {
	caption := "Ticket " + render.Label(number)
	to := telebot.ChatID(userID)

	if n.renderer != nil {
		data, err := n.renderer.Render(number)
		if err == nil {
			photo := &telebot.Photo{File: telebot.FromReader(bytes.NewReader(data)), Caption: caption}
			if _, err := n.sender.Send(to, photo); err != nil {
				return fmt.Errorf("send ticket image %d: %w", number, err)
			}
			return nil
		}
		n.log.Warn("ticket image rendering failed, sending text", slog.Int("ticket_number", number), slog.Any("error", err))
	}

	if _, err := n.sender.Send(to, "🎟 "+caption); err != nil {
		return fmt.Errorf("send ticket caption %d: %w", number, err)
	}
	return nil
}
