// Package server exposes the bot's HTTP surface: probes, metrics, the Paystack
// webhook and, in webhook mode, the Telegram update endpoint.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/raffle-bot/internal/idempotency"
	"github.com/Proton-105/raffle-bot/internal/lifecycle"
	"github.com/Proton-105/raffle-bot/internal/middleware"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/pkg/logger"
)

const (
	PathLiveness       = "/healthz"
	PathReadiness      = "/readyz"
	PathMetrics        = "/metrics"
	PathPaystackHook   = "/webhooks/paystack"
	PathTelegramUpdate = "/telegram"

	maxWebhookBody = 1 << 20
)

// Resolver settles a payment reference.
type Resolver interface {
	Resolve(ctx context.Context, reference string, expectedUserID int64, source raffle.Source) (*raffle.Resolution, error)
}

// Options wires the server's collaborators. Nil fields disable the matching routes.
type Options struct {
	Probes         lifecycle.HealthChecker
	Resolver       Resolver
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	WebhookSecret  string
	// TelegramUpdates receives Telegram webhook posts when the bot is not polling.
	TelegramUpdates http.Handler
}

// NewRouter builds the chi router serving every HTTP route.
func NewRouter(opts Options, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(logger.Middleware)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get(PathLiveness, probeHandler(opts.Probes, false))
	r.Get(PathReadiness, probeHandler(opts.Probes, true))
	r.Handle(PathMetrics, promhttp.Handler())

	if opts.Resolver != nil && opts.WebhookSecret != "" {
		r.Post(PathPaystackHook, newWebhookHandler(opts, log).ServeHTTP)
	}

	if opts.TelegramUpdates != nil {
		r.Post(PathTelegramUpdate, opts.TelegramUpdates.ServeHTTP)
	}

	return r
}

func probeHandler(probes lifecycle.HealthChecker, readiness bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if probes == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		check := probes.Liveness
		if readiness {
			check = probes.Readiness
		}

		if err := check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
