package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"

	"github.com/Proton-105/raffle-bot/internal/bot"
	"github.com/Proton-105/raffle-bot/internal/bot/handlers"
	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	"github.com/Proton-105/raffle-bot/internal/database"
	"github.com/Proton-105/raffle-bot/internal/health"
	"github.com/Proton-105/raffle-bot/internal/i18n"
	"github.com/Proton-105/raffle-bot/internal/idempotency"
	"github.com/Proton-105/raffle-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/raffle-bot/internal/jobs/handlers"
	"github.com/Proton-105/raffle-bot/internal/lifecycle"
	"github.com/Proton-105/raffle-bot/internal/middleware"
	"github.com/Proton-105/raffle-bot/internal/notify"
	"github.com/Proton-105/raffle-bot/internal/payment"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/ratelimit"
	"github.com/Proton-105/raffle-bot/internal/render"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/internal/server"
	"github.com/Proton-105/raffle-bot/internal/state"
	"github.com/Proton-105/raffle-bot/internal/statscache"
	"github.com/Proton-105/raffle-bot/internal/user"
	"github.com/Proton-105/raffle-bot/pkg/config"
	"github.com/Proton-105/raffle-bot/pkg/graceful"
	"github.com/Proton-105/raffle-bot/pkg/logger"
	"github.com/Proton-105/raffle-bot/pkg/metrics"
	"github.com/Proton-105/raffle-bot/pkg/redis"
)

const (
	healthTimeout          = 3 * time.Second
	rateLimitCleanInterval = 5 * time.Minute
	stateMetricsInterval   = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "raffle bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: firstNonEmpty(cfg.Sentry.Environment, cfg.AppEnv),
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	log.Info("starting raffle bot",
		slog.String("raffle", cfg.Raffle.Title),
		slog.String("bot_mode", cfg.Bot.Mode),
		slog.String("store", cfg.Database.Driver),
		slog.String("scheduler", cfg.Reconcile.Scheduler),
	)

	shutdown := lifecycle.NewShutdown(log)

	store, err := openStore(ctx, *cfg, log)
	if err != nil {
		return err
	}
	shutdown.Register(lifecycle.PhaseStorage, "store", func(context.Context) error { return store.Close() })

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	shutdown.Register(lifecycle.PhaseStorage, "redis", func(context.Context) error { return rdb.Close() })

	// Purchase flow state.
	stateStorage := state.NewRedisStorage(rdb.Client, log, cfg.State.TTL)
	fsm := state.NewStateMachine(stateStorage, log, rdb.Client)
	go state.NewCleaner(stateStorage, log, cfg.State.TTL, cfg.State.CleanupInterval).Run(ctx)
	go metrics.NewStateCollector(fsm, stateMetricsInterval, log).Run(ctx)

	var idem idempotency.Manager
	if cfg.Idempotency.Enabled {
		idem = idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log)
		go idempotency.NewCleaner(rdb.Client, log, cfg.Idempotency.CleanupInterval, cfg.Idempotency.TTL).Run(ctx)
	}

	// Payments and tickets.
	gateway := payment.NewPaystackClient(cfg.Paystack, log)
	if !cfg.Paystack.SkipStartupCheck {
		if err := gateway.Ping(ctx); err != nil {
			return fmt.Errorf("paystack startup check: %w", err)
		}
	}

	stats := raffle.NewStatsService(
		store.Tickets,
		store.Pending,
		statscache.NewCache(redis.NewMetricsClient(rdb), statscache.DefaultTTL),
		cfg.Raffle,
		log,
	)
	allocator := raffle.NewAllocator(store.Tickets, cfg.Raffle, log)
	purchases := raffle.NewPurchaseService(gateway, store.Pending, store.Tickets, cfg.Raffle, log)
	stale := raffle.NewStaleReporter(store.Pending, cfg.Reconcile.StaleAfter, log)

	renderer, err := render.NewRenderer(cfg.Bot.TicketTemplate, cfg.Raffle.Title, log)
	if err != nil {
		return err
	}

	tb, webhook, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return err
	}

	reconciler := raffle.NewReconciler(
		gateway,
		store.Pending,
		allocator,
		notify.NewTelegramNotifier(tb, renderer, log),
		stats,
		cfg.Raffle,
		log,
	)
	sweeper := raffle.NewSweeper(reconciler, stale, cfg.Reconcile.Interval, cfg.Reconcile.InitialDelay, log)

	catalog, err := i18n.Load("en")
	if err != nil {
		return err
	}
	log.Debug("translations loaded", slog.Any("languages", catalog.Languages()))

	var rateLimit *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rules, err := ratelimit.NewRules(cfg.RateLimit)
		if err != nil {
			return err
		}
		fallback := ratelimit.NewMemoryLimiter()
		limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), fallback, log)
		rateLimit = middleware.NewRateLimitMiddleware(limiter, rules, catalog.Translator(""), log)
		go ratelimit.NewCleaner(rdb.Client, fallback, rules.LongestWindow(), rateLimitCleanInterval, log).Run(ctx)
	}

	app := bot.New(tb, bot.Options{
		Handlers: handlers.Deps{
			Raffle:    cfg.Raffle,
			Purchases: purchases,
			Resolver:  reconciler,
			Stats:     stats,
			Tickets:   store.Tickets,
			Sweeps:    sweeper,
			Stale:     stale,
			FSM:       fsm,
			Keyboards: keyboard.NewBuilder(log),
			I18n:      catalog,
			Log:       log,
		},
		Users:          user.NewService(store.Users, log),
		Idempotency:    idem,
		IdempotencyTTL: cfg.Idempotency.TTL,
		RateLimit:      rateLimit,
		SentryEnabled:  cfg.Sentry.Enabled,
	}, log)

	if err := startSweeps(ctx, *cfg, sweeper, shutdown, log); err != nil {
		return err
	}

	// HTTP surface.
	checker := health.NewChecker(log, healthTimeout)
	checker.AddCheck("store", health.NewStoreChecker(store))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	checker.AddCheck("paystack", health.CheckFunc(gateway.Ping))

	opts := server.Options{
		Probes:         lifecycle.NewProbes(checker, log),
		Idempotency:    idem,
		IdempotencyTTL: cfg.Idempotency.TTL,
	}
	if cfg.Server.WebhookEnabled {
		opts.Resolver = reconciler
		opts.WebhookSecret = cfg.Paystack.SecretKey
	}
	if webhook != nil && cfg.Bot.ListenAddr == "" {
		opts.TelegramUpdates = webhook
	}

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.NewRouter(opts, log),
		ReadHeaderTimeout: 10 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe(ctx)
	}()

	go app.Start()
	shutdown.Register(lifecycle.PhaseIntake, "telegram", func(context.Context) error {
		app.Stop()
		return nil
	})

	select {
	case <-ctx.Done():
		err = <-httpErr
	case err = <-httpErr:
		stop()
	}
	if err != nil {
		log.Error("http server stopped", slog.Any("error", err))
	}

	log.Info("raffle bot shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(err, shutdown.Execute(shutdownCtx))
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store; tickets are lost on restart")
		return repository.NewMemoryStore(), nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, log).ApplyDir(ctx, cfg.Database.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return repository.NewPostgresStore(db, log), nil
}

// startSweeps runs reconciliation either on an in-process ticker or through asynq.
func startSweeps(ctx context.Context, cfg config.Config, sweeper *raffle.Sweeper, shutdown *lifecycle.Shutdown, log *slog.Logger) error {
	if cfg.Reconcile.Scheduler != "asynq" {
		done := make(chan struct{})
		go func() {
			defer close(done)
			sweeper.Run(ctx)
		}()
		shutdown.Register(lifecycle.PhaseWorkers, "sweeper", func(hookCtx context.Context) error {
			select {
			case <-done:
				return nil
			case <-hookCtx.Done():
				return hookCtx.Err()
			}
		})
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, log)
	worker.RegisterHandler(jobs.TaskTypeSweepPayments, jobhandlers.NewSweepHandler(sweeper, log))
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}
	shutdown.Register(lifecycle.PhaseWorkers, "jobs-worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(redisOpt, cfg.Reconcile.Interval, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start jobs scheduler: %w", err)
	}
	shutdown.Register(lifecycle.PhaseWorkers, "jobs-scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	queue := jobs.NewManager(redisOpt, log)
	shutdown.Register(lifecycle.PhaseWorkers, "jobs-client", func(context.Context) error { return queue.Close() })
	if err := queue.EnqueueSweep(ctx, cfg.Reconcile.InitialDelay); err != nil {
		log.Warn("failed to enqueue startup sweep", slog.Any("error", err))
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
