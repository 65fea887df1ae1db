// Package jobs runs the payment sweep on asynq when several bot replicas share one Redis.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeSweepPayments = "payments:sweep"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the priority map the worker consumes.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// Sweep triggers.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

type SweepPayload struct {
	Trigger string `json:"trigger"`
}

// NewSweepTask builds a sweep task. Sweeps are not retried: the next tick
// covers whatever this one missed. The unique window keeps slow sweeps from
// piling up behind each other.
func NewSweepTask(trigger string, interval time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{asynq.Queue(QueueCritical), asynq.MaxRetry(0)}
	if interval > 0 {
		opts = append(opts, asynq.Unique(interval), asynq.Timeout(interval))
	}

	return asynq.NewTask(TaskTypeSweepPayments, payload, opts...), nil
}

// ParseSweepPayload decodes a sweep task payload. An empty payload is a scheduled sweep.
func ParseSweepPayload(t *asynq.Task) (SweepPayload, error) {
	payload := SweepPayload{Trigger: TriggerSchedule}
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return SweepPayload{}, err
	}
	return payload, nil
}
