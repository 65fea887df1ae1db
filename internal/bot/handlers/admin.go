package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"
)

const defaultRecentLimit = 10

// RequireAdmin wraps next so that only configured operators can run it.
func RequireAdmin(deps Deps, next Handler) Handler {
	log := deps.logger()

	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok || !deps.Raffle.IsAdmin(userID) {
			log.Warn("operator command denied", slog.Int64("user_id", userID), slog.String("command", c.Text()))
			return c.Send(deps.translator(c).T("admin.denied"))
		}
		return next(c)
	}
}

// NewStatsHandler reports raffle totals.
func NewStatsHandler(deps Deps) Handler {
	return RequireAdmin(deps, func(c telebot.Context) error {
		stats, err := deps.Stats.Stats(context.Background())
		if err != nil {
			return err
		}

		return c.Send(deps.translator(c).Tf("admin.stats", map[string]any{
			"Sold":      stats.TotalTickets,
			"Users":     stats.TotalUsers,
			"Revenue":   deps.money(stats.TotalRevenue),
			"Pending":   stats.PendingPayments,
			"Available": stats.Available(),
		}))
	})
}

// NewDashboardHandler reports totals, the latest tickets and the prize pool.
func NewDashboardHandler(deps Deps) Handler {
	return RequireAdmin(deps, func(c telebot.Context) error {
		ctx := context.Background()

		stats, err := deps.Stats.Stats(ctx)
		if err != nil {
			return err
		}

		limit := deps.Raffle.RecentLimit
		if limit <= 0 {
			limit = defaultRecentLimit
		}
		recent, err := deps.Tickets.ListRecent(ctx, limit)
		if err != nil {
			return err
		}

		t := deps.translator(c)
		var b strings.Builder
		b.WriteString(t.Tf("admin.dashboard", map[string]any{
			"Sold":      stats.TotalTickets,
			"Users":     stats.TotalUsers,
			"Revenue":   deps.money(stats.TotalRevenue),
			"Pending":   stats.PendingPayments,
			"Available": stats.Available(),
		}))
		b.WriteString("\n")

		if len(recent) == 0 {
			b.WriteString(t.T("admin.no_recent"))
		} else {
			b.WriteString(t.Tf("admin.recent_header", map[string]any{"Count": len(recent)}))
			for _, ticket := range recent {
				b.WriteString("\n")
				b.WriteString(t.Tf("admin.recent_line", map[string]any{
					"Number": ticket.TicketNumber,
					"UserID": ticket.UserID,
					"Time":   ticket.CreatedAt.UTC().Format("2006-01-02 15:04"),
				}))
			}
		}

		b.WriteString("\n\n")
		b.WriteString(t.Tf("admin.prize_pool", map[string]any{
			"PrizePool": deps.money(deps.Stats.PrizePool(stats)),
			"Percent":   deps.Raffle.PrizePoolPercent,
		}))

		return c.Send(b.String())
	})
}

// NewPendingHandler lists pending payments older than the stale threshold.
func NewPendingHandler(deps Deps) Handler {
	return RequireAdmin(deps, func(c telebot.Context) error {
		t := deps.translator(c)
		if deps.Stale == nil {
			return c.Send(t.Tf("admin.pending_none", map[string]any{"Age": "-"}))
		}

		stale, err := deps.Stale.Report(context.Background())
		if err != nil {
			return err
		}

		age := deps.Stale.Threshold().String()
		if len(stale) == 0 {
			return c.Send(t.Tf("admin.pending_none", map[string]any{"Age": age}))
		}

		var b strings.Builder
		b.WriteString(t.Tf("admin.pending_header", map[string]any{"Count": len(stale), "Age": age}))
		for _, p := range stale {
			b.WriteString("\n")
			b.WriteString(t.Tf("admin.pending_line", map[string]any{
				"Reference": p.Reference,
				"UserID":    p.UserID,
				"Tickets":   p.TicketCount,
				"Amount":    deps.money(p.Amount),
				"Since":     p.CreatedAt.UTC().Format("2006-01-02 15:04"),
			}))
		}
		return c.Send(b.String())
	})
}

// NewSweepHandler runs a reconciliation pass now and reports the counts.
func NewSweepHandler(deps Deps) Handler {
	return RequireAdmin(deps, func(c telebot.Context) error {
		if deps.Sweeps == nil {
			return c.Send(deps.translator(c).T("errors.generic"))
		}

		report := deps.Sweeps.RunOnce(context.Background())

		return c.Send(deps.translator(c).Tf("admin.sweep_report", map[string]any{
			"Duration":    report.Duration.Round(time.Millisecond).String(),
			"Checked":     report.Checked,
			"Allocated":   report.Allocated,
			"Unconfirmed": report.Unconfirmed,
			"Skipped":     report.Skipped,
			"Failed":      report.Failed,
		}))
	})
}
