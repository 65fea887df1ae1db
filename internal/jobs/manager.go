package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// EnqueueSweep schedules a one-off sweep after delay.
	EnqueueSweep(ctx context.Context, delay time.Duration) error
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) EnqueueSweep(ctx context.Context, delay time.Duration) error {
	task, err := NewSweepTask(TriggerStartup, 0)
	if err != nil {
		return err
	}

	info, err := m.Enqueue(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	if m.log != nil {
		m.log.InfoContext(ctx, "jobs: startup sweep enqueued", slog.String("task_id", info.ID), slog.Duration("delay", delay))
	}
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
