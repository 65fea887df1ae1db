package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/keyboard"
	"github.com/Proton-105/raffle-bot/internal/i18n"
	"github.com/Proton-105/raffle-bot/internal/ratelimit"
)

const rateLimitTimeout = 2 * time.Second

// actionScopes maps update actions to the purchase scopes with their own limits.
var actionScopes = map[string]ratelimit.Scope{
	keyboard.CallbackQuantity: ratelimit.ScopeBuy,
	"confirm_payment":         ratelimit.ScopeConfirm,
}

// RateLimitMiddleware enforces the global, per-user and purchase limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter    ratelimit.Limiter
	rules      *ratelimit.Rules
	translator i18n.Translator
	log        *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, translator i18n.Translator, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter:    limiter,
		rules:      rules,
		translator: translator,
		log:        log,
	}
}

// Handle returns a telebot middleware that charges every applicable counter in
// order and rejects on the first one that is full. Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
		defer cancel()

		for _, key := range m.rules.KeysFor(sender.ID, actionScopes[Action(c)]) {
			rule, _ := m.rules.For(key.Scope)
			if res, blocked := m.check(ctx, key, rule); blocked {
				m.log.Warn("rate limit exceeded",
					slog.Int64("user_id", sender.ID),
					slog.String("scope", string(key.Scope)),
				)
				return m.reject(c, res)
			}
		}

		return next(c)
	}
}

// check reports whether key is over its limit.
func (m *RateLimitMiddleware) check(ctx context.Context, key ratelimit.Key, rule ratelimit.Rule) (*ratelimit.Result, bool) {
	result, err := m.limiter.Check(ctx, key, rule)
	if err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			return result, true
		}
		m.log.Warn("rate limiter error", slog.String("key", key.String()), slog.Any("error", err))
		return nil, false
	}
	return result, result != nil && !result.Allowed
}

func (m *RateLimitMiddleware) reject(c telebot.Context, result *ratelimit.Result) error {
	seconds := 1
	if result != nil && result.RetryAfter > 0 {
		seconds = int(math.Ceil(result.RetryAfter.Seconds()))
	}

	text := fmt.Sprintf("Too many requests. Please wait %ds and try again.", seconds)
	if m.translator != nil {
		text = m.translator.Tf("errors.rate_limited", map[string]any{"Seconds": seconds})
	}

	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}
