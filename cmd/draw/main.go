// Command draw picks the raffle winner uniformly among settled tickets and
// prints the result together with the final totals.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Proton-105/raffle-bot/internal/database"
	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
	"github.com/Proton-105/raffle-bot/pkg/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "draw: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var (
		env       string
		configDir string
		asJSON    bool
	)

	flags := pflag.NewFlagSet("draw", pflag.ContinueOnError)
	flags.StringVar(&env, "env", "", "configuration environment (overrides APP_ENV)")
	flags.StringVar(&configDir, "config-dir", "./configs", "directory holding <env>.yaml")
	flags.BoolVar(&asJSON, "json", false, "print the result as JSON")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if env != "" {
		if err := os.Setenv("APP_ENV", env); err != nil {
			return err
		}
	}

	cfg, _, err := config.LoadFrom(configDir)
	if err != nil {
		return err
	}
	log := logger.New(*cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == "memory" {
		return errors.New("the in-memory store holds no tickets outside the bot process")
	}
	db, err := database.Open(ctx, *cfg)
	if err != nil {
		return err
	}
	store := repository.NewPostgresStore(db, log)
	defer store.Close()

	result, err := draw(ctx, store, cfg.Raffle, nil)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(out, result, cfg.Raffle)
}

// Result is the outcome of a draw.
type Result struct {
	Winner       domain.TicketOwner `json:"winner"`
	Stats        domain.Stats       `json:"stats"`
	PrizePool    int64              `json:"prize_pool"`
	Participants int                `json:"participants"`
}

func draw(ctx context.Context, store *repository.Store, cfg config.RaffleConfig, randInt raffle.RandomIntFunc) (*Result, error) {
	owners, err := store.Tickets.ListAllWithOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	picked, err := raffle.PickWinner(owners, randInt)
	if err != nil {
		return nil, err
	}

	stats, err := raffle.NewStatsService(store.Tickets, store.Pending, nil, cfg, nil).Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Winner:       picked.Winner,
		Stats:        *stats,
		PrizePool:    raffle.PrizePool(stats.TotalRevenue, cfg.PrizePoolPercent),
		Participants: picked.Participants,
	}, nil
}

func printResult(out io.Writer, r *Result, cfg config.RaffleConfig) error {
	_, err := fmt.Fprintf(out,
		"%s\n\nWinning ticket: #%d\nWinner: %s (user %d)\n\nTickets sold: %d of %d\nParticipants: %d\nRevenue: %s\nPrize pool: %s (%d%%)\nPending payments: %d\n",
		cfg.Title,
		r.Winner.TicketNumber,
		r.Winner.DisplayName(),
		r.Winner.UserID,
		r.Stats.TotalTickets,
		r.Stats.MaxTickets,
		r.Participants,
		domain.FormatAmount(r.Stats.TotalRevenue, cfg.CurrencySymbol),
		domain.FormatAmount(r.PrizePool, cfg.CurrencySymbol),
		cfg.PrizePoolPercent,
		r.Stats.PendingPayments,
	)
	return err
}
