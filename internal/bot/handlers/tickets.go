package handlers

import (
	"context"
	"slices"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
)

// TicketsPageSize is the number of ticket numbers listed per page.
const TicketsPageSize = 50

// NewMyTicketsHandler lists the sender's ticket numbers in ascending order, paged
// by the tickets:<page> callback.
func NewMyTicketsHandler(deps Deps) CallbackHandler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		tickets, err := deps.Tickets.ListByUser(context.Background(), userID)
		if err != nil {
			return err
		}

		t := deps.translator(c)
		if len(tickets) == 0 {
			return reply(c, t.T("tickets.none"), deps.Keyboards.BackToMenu(t))
		}

		numbers := make([]int, len(tickets))
		for i, ticket := range tickets {
			numbers[i] = ticket.TicketNumber
		}
		slices.Sort(numbers)

		page := 1
		if cb := c.Callback(); cb != nil {
			if _, data, err := keyboard.DecodeCallback(cb.Data); err == nil && data != "" {
				if p, err := strconv.Atoi(data); err == nil {
					page = p
				}
			}
		}

		start, end, pages := keyboard.Paginate(len(numbers), TicketsPageSize, page)
		page = start/TicketsPageSize + 1

		text := t.Tf("tickets.list", map[string]any{
			"Total":   len(numbers),
			"Numbers": joinNumbers(numbers[start:end]),
		})
		return reply(c, text, deps.Keyboards.TicketsPage(t, page, pages))
	}
}
