package config

import (
	"fmt"
	"time"

	"github.com/Proton-105/raffle-bot/pkg/redis"
)

// Config holds runtime configuration for the raffle bot. It is built once at startup
// and passed by value to every component that needs it.
type Config struct {
	AppEnv      string            `mapstructure:"app_env"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Bot         BotConfig         `mapstructure:"bot"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       redis.Config      `mapstructure:"redis"`
	Paystack    PaystackConfig    `mapstructure:"paystack"`
	Raffle      RaffleConfig      `mapstructure:"raffle"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	State       StateConfig       `mapstructure:"state"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	// File enables rotating file output in addition to stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token      string        `mapstructure:"token" validate:"required"`
	Mode       string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PublicURL  string        `mapstructure:"public_url" validate:"required_if=Mode webhook"`
	ListenAddr string        `mapstructure:"listen_addr"`
	// TicketTemplate is an optional background image for rendered tickets.
	TicketTemplate string `mapstructure:"ticket_template"`
}

// ServerConfig configures the HTTP server hosting health, metrics and the payment webhook.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	WebhookEnabled  bool          `mapstructure:"webhook_enabled"`
}

// DatabaseConfig configures the ticket and payment store.
type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver" validate:"oneof=postgres memory"`
	Host          string        `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user" validate:"required_if=Driver postgres"`
	Password      string        `mapstructure:"password"`
	Name          string        `mapstructure:"name" validate:"required_if=Driver postgres"`
	SSLMode       string        `mapstructure:"ssl_mode"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns"`
	ConnMaxLife   time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir string        `mapstructure:"migrations_dir"`
}

// PaystackConfig configures the payment gateway client.
type PaystackConfig struct {
	SecretKey          string        `mapstructure:"secret_key" validate:"required,startswith=sk_"`
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	Currency           string        `mapstructure:"currency" validate:"required,len=3"`
	CallbackURL        string        `mapstructure:"callback_url" validate:"omitempty,url"`
	InitializeTimeout  time.Duration `mapstructure:"initialize_timeout"`
	VerifyTimeout      time.Duration `mapstructure:"verify_timeout"`
	MaxRetries         int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	SkipStartupCheck   bool          `mapstructure:"skip_startup_check"`
}

// RaffleConfig holds the raffle rules.
type RaffleConfig struct {
	Title             string  `mapstructure:"title" validate:"required"`
	TicketPrice       int64   `mapstructure:"ticket_price" validate:"gt=0"`
	MaxTickets        int     `mapstructure:"max_tickets" validate:"gt=0"`
	CurrencySymbol    string  `mapstructure:"currency_symbol"`
	PurchaseOptions   []int   `mapstructure:"purchase_options" validate:"required,min=1,dive,gt=0"`
	PrizePoolPercent  int     `mapstructure:"prize_pool_percent" validate:"gte=0,lte=100"`
	AdminIDs          []int64 `mapstructure:"admin_ids"`
	AllocationRetries int     `mapstructure:"allocation_retries" validate:"gte=0"`
	RecentLimit       int     `mapstructure:"recent_limit" validate:"gte=0"`
}

// ReconcileConfig configures the periodic payment sweep.
type ReconcileConfig struct {
	Scheduler    string        `mapstructure:"scheduler" validate:"oneof=ticker asynq"`
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	StaleAfter   time.Duration `mapstructure:"stale_after" validate:"gte=0"`
}

// RateLimitRule describes a single limit/window pair.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

// RateLimitCommands holds per-command limits.
type RateLimitCommands struct {
	Buy     RateLimitRule `mapstructure:"buy"`
	Confirm RateLimitRule `mapstructure:"confirm"`
}

// RateLimitConfig configures per-user throttling of bot updates.
type RateLimitConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Global    RateLimitRule     `mapstructure:"global"`
	PerUser   RateLimitRule     `mapstructure:"per_user"`
	Commands  RateLimitCommands `mapstructure:"commands"`
	Whitelist []int64           `mapstructure:"whitelist"`
}

// IdempotencyConfig configures update de-duplication.
type IdempotencyConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// StateConfig configures the per-user purchase flow state.
type StateConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// GetDBConnectionString returns PostgreSQL DSN based on config values.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// IsAdmin reports whether userID is listed as a raffle operator.
func (c RaffleConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Bot.Mode == "" {
		c.Bot.Mode = "polling"
	}
	if c.Bot.Timeout == 0 {
		c.Bot.Timeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
	if c.Paystack.BaseURL == "" {
		c.Paystack.BaseURL = "https://api.paystack.co"
	}
	if c.Paystack.Currency == "" {
		c.Paystack.Currency = "NGN"
	}
	if c.Paystack.InitializeTimeout == 0 {
		c.Paystack.InitializeTimeout = 30 * time.Second
	}
	if c.Paystack.VerifyTimeout == 0 {
		c.Paystack.VerifyTimeout = 20 * time.Second
	}
	if c.Raffle.CurrencySymbol == "" {
		c.Raffle.CurrencySymbol = "₦"
	}
	if len(c.Raffle.PurchaseOptions) == 0 {
		c.Raffle.PurchaseOptions = []int{1, 2, 5, 10}
	}
	if c.Raffle.PrizePoolPercent == 0 {
		c.Raffle.PrizePoolPercent = 80
	}
	if c.Raffle.AllocationRetries == 0 {
		c.Raffle.AllocationRetries = 5
	}
	if c.Raffle.RecentLimit == 0 {
		c.Raffle.RecentLimit = 10
	}
	if c.Reconcile.Scheduler == "" {
		c.Reconcile.Scheduler = "ticker"
	}
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = 30 * time.Second
	}
	if c.Reconcile.InitialDelay == 0 {
		c.Reconcile.InitialDelay = 10 * time.Second
	}
	if c.Reconcile.StaleAfter == 0 {
		c.Reconcile.StaleAfter = 24 * time.Hour
	}
	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Idempotency.CleanupInterval == 0 {
		c.Idempotency.CleanupInterval = time.Hour
	}
	if c.State.TTL == 0 {
		c.State.TTL = time.Hour
	}
	if c.State.CleanupInterval == 0 {
		c.State.CleanupInterval = 10 * time.Minute
	}
}
