package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Proton-105/raffle-bot/internal/idempotency"
	"github.com/Proton-105/raffle-bot/internal/payment"
	"github.com/Proton-105/raffle-bot/internal/raffle"
)

// webhookHandler turns signed gateway events into reconciliations. Any request
// with a valid signature is acknowledged with 200 so the gateway stops retrying;
// unsettled references are picked up again by the sweep.
type webhookHandler struct {
	resolver    Resolver
	idempotency idempotency.Manager
	ttl         time.Duration
	secret      string
	log         *slog.Logger
}

func newWebhookHandler(opts Options, log *slog.Logger) *webhookHandler {
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &webhookHandler{
		resolver:    opts.Resolver,
		idempotency: opts.Idempotency,
		ttl:         ttl,
		secret:      opts.WebhookSecret,
		log:         log.With(slog.String("component", "paystack_webhook")),
	}
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !payment.VerifySignature(h.secret, body, r.Header.Get(payment.SignatureHeader)) {
		h.log.Warn("rejected webhook with invalid signature", slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := payment.ParseWebhookEvent(body)
	if err != nil {
		h.log.Warn("ignoring malformed webhook", slog.Any("error", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	if event.Event != payment.EventChargeSuccess || event.Data.Reference == "" {
		h.log.Debug("ignoring webhook event", slog.String("event", event.Event))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	err = h.resolve(ctx, event.Event, event.Data.Reference)
	switch {
	case errors.Is(err, raffle.ErrReferenceNotFound):
		h.log.Info("webhook for unknown or settled reference", slog.String("reference", event.Data.Reference))
	case err != nil:
		h.log.Error("webhook reconciliation failed",
			slog.String("reference", event.Data.Reference),
			slog.Any("error", err),
		)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *webhookHandler) resolve(ctx context.Context, eventName, reference string) error {
	run := func(ctx context.Context) (interface{}, error) {
		res, err := h.resolver.Resolve(ctx, reference, 0, raffle.SourceWebhook)
		if err != nil {
			return nil, err
		}
		h.log.Info("webhook resolved payment",
			slog.String("reference", reference),
			slog.String("outcome", string(res.Outcome)),
		)
		return string(res.Outcome), nil
	}

	if h.idempotency == nil {
		_, err := run(ctx)
		return err
	}

	key := idempotency.PaymentEventKey(eventName, reference)
	result, err := h.idempotency.Execute(ctx, key, h.ttl, run)
	if errors.Is(err, idempotency.ErrRequestInProgress) {
		return nil
	}
	if err == nil && result.FromCache {
		h.log.Debug("duplicate webhook delivery", slog.String("reference", reference))
	}
	return err
}
