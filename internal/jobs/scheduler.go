package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Start() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	interval       time.Duration
	log            *slog.Logger
}

// NewScheduler enqueues a sweep every interval.
func NewScheduler(redisOpt asynq.RedisConnOpt, interval time.Duration, log *slog.Logger) Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC}),
		interval:       interval,
		log:            log,
	}
}

// CronSpec is the asynq spec of the periodic sweep.
func CronSpec(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewSweepTask(TriggerSchedule, s.interval)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(CronSpec(s.interval), task); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered payment sweep", slog.Duration("interval", s.interval))
	}

	return nil
}

// Start runs the scheduler in the background.
func (s *scheduler) Start() error {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	return s.asynqScheduler.Start()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
