// Package bot wires the Telegram transport to the raffle handlers.
package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/handlers"
	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/raffle-bot/internal/errors"
	"github.com/Proton-105/raffle-bot/internal/idempotency"
	"github.com/Proton-105/raffle-bot/internal/middleware"
	"github.com/Proton-105/raffle-bot/internal/state"
	"github.com/Proton-105/raffle-bot/internal/user"
	"github.com/Proton-105/raffle-bot/pkg/config"
)

// WebhookPath is where Telegram posts updates when the bot runs in webhook mode
// behind the application HTTP server.
const WebhookPath = "/telegram"

// NewTelebot creates the Telegram client. In webhook mode without a listen
// address, the returned webhook must be mounted on the application HTTP server.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, *telebot.Webhook, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telegram error", slog.Any("error", err))
		},
	}

	var webhook *telebot.Webhook
	if cfg.Mode == "webhook" {
		webhook = &telebot.Webhook{
			Listen:   cfg.ListenAddr,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: strings.TrimRight(cfg.PublicURL, "/") + WebhookPath},
		}
		settings.Poller = webhook
	} else {
		settings.Poller = &telebot.LongPoller{Timeout: cfg.Timeout}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, webhook, nil
}

// Options carries the collaborators of a Bot. RateLimit, Idempotency and Users may be nil.
type Options struct {
	Handlers       handlers.Deps
	Users          *user.Service
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	RateLimit      *middleware.RateLimitMiddleware
	SentryEnabled  bool
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	router     *Router
	dispatcher *Dispatcher
	errHandler *errors.Handler
}

// New registers the raffle handlers on tb.
func New(tb *telebot.Bot, opts Options, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if opts.Handlers.Log == nil {
		opts.Handlers.Log = log
	}
	if opts.Handlers.Keyboards == nil {
		opts.Handlers.Keyboards = keyboard.NewBuilder(log)
	}

	dispatcher := NewDispatcher(opts.Handlers.FSM, log)
	b := &Bot{
		telebot:    tb,
		log:        log,
		router:     NewRouter(dispatcher, log),
		dispatcher: dispatcher,
		errHandler: errors.NewHandler(log, opts.SentryEnabled),
	}

	b.setupRouter(opts)

	if tb != nil {
		if opts.RateLimit != nil {
			tb.Use(opts.RateLimit.Handle)
		}
		tb.Handle(telebot.OnText, b.router.Route)
		tb.Handle(telebot.OnCallback, b.router.Route)
	}

	return b
}

// Start publishes the command menu and runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	if err := b.telebot.SetCommands(commandMenu()); err != nil {
		b.log.Warn("failed to publish command menu", slog.Any("error", err))
	}

	b.log.Info("telegram bot started", slog.String("username", b.telebot.Me.Username))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Router exposes the update router.
func (b *Bot) Router() *Router {
	return b.router
}

func (b *Bot) setupRouter(opts Options) {
	deps := opts.Handlers

	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Metrics)
	b.router.Use(middleware.Idempotency(opts.Idempotency, opts.IdempotencyTTL, b.log))
	b.router.Use(RegisterMiddleware(opts.Users, b.log))

	start := handlers.NewStartHandler(deps)

	b.router.RegisterCommand(CommandStart, start)
	b.router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(deps))
	b.router.RegisterCommand(CommandHelp, handlers.NewHelpHandler(deps))
	b.router.RegisterCommand(CommandStats, handlers.NewStatsHandler(deps))
	b.router.RegisterCommand(CommandAdmin, handlers.NewDashboardHandler(deps))
	b.router.RegisterCommand(CommandPending, handlers.NewPendingHandler(deps))
	b.router.RegisterCommand(CommandSweep, handlers.NewSweepHandler(deps))

	b.router.RegisterCallback(keyboard.CallbackBackToMenu, handlers.CallbackHandler(start))
	b.router.RegisterCallback(keyboard.CallbackBuyMenu, handlers.NewBuyMenuHandler(deps))
	b.router.RegisterCallback(keyboard.CallbackQuantity, handlers.NewQuantityHandler(deps))
	b.router.RegisterCallback(keyboard.CallbackConfirmPayment, handlers.NewConfirmPaymentHandler(deps))
	b.router.RegisterCallback(keyboard.CallbackMyTickets, handlers.NewMyTicketsHandler(deps))
	b.router.RegisterCallback(keyboard.CallbackTicketsPage, handlers.NewMyTicketsHandler(deps))
	b.router.RegisterCallback(keyboard.CallbackInfo, handlers.CallbackHandler(handlers.NewInfoHandler(deps)))

	b.dispatcher.RegisterStateHandler(state.StateAwaitingPayment, handlers.NewAwaitingPaymentHandler(deps))
	b.router.SetDefault(start)
}

func commandMenu() []telebot.Command {
	return []telebot.Command{
		{Text: strings.TrimPrefix(CommandStart, "/"), Description: "Open the raffle menu"},
		{Text: strings.TrimPrefix(CommandHelp, "/"), Description: "How buying tickets works"},
		{Text: strings.TrimPrefix(CommandCancel, "/"), Description: "Abandon the current purchase"},
	}
}
