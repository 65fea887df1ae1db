// Package middleware holds the cross-cutting wrappers applied to bot handlers and HTTP routes.
package middleware

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
)

// Action names the update handled by c: the command for messages and the
// callback identifier for button presses. Payloads such as references are dropped
// so the result is safe to use as a metric label.
func Action(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		if action := keyboard.CallbackAction(cb.Data); action != "" {
			return action
		}
		return "unknown"
	}

	text := strings.TrimSpace(c.Text())
	if !strings.HasPrefix(text, "/") {
		if text == "" {
			return "unknown"
		}
		return "text"
	}

	command := strings.Fields(text)[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	return command
}
