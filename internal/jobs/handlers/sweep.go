// Package handlers holds the asynq task handlers.
package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/raffle-bot/internal/jobs"
	"github.com/Proton-105/raffle-bot/internal/raffle"
)

// SweepRunner runs one reconciliation pass.
type SweepRunner interface {
	RunOnce(ctx context.Context) raffle.SweepReport
}

type SweepHandler struct {
	runner SweepRunner
	log    *slog.Logger
}

func NewSweepHandler(runner SweepRunner, log *slog.Logger) *SweepHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SweepHandler{runner: runner, log: log}
}

// ProcessTask runs the sweep. Per-reference failures are retried by the next
// sweep, so only a cancelled context fails the task.
func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseSweepPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "sweep: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return asynq.SkipRetry
	}

	report := h.runner.RunOnce(ctx)

	attrs := []any{
		slog.String("trigger", payload.Trigger),
		slog.Int("checked", report.Checked),
		slog.Int("allocated", report.Allocated),
		slog.Int("unconfirmed", report.Unconfirmed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration),
	}
	if taskID, ok := asynq.GetTaskID(ctx); ok {
		attrs = append(attrs, slog.String("task_id", taskID))
	}
	h.log.InfoContext(ctx, "sweep task finished", attrs...)

	return ctx.Err()
}
