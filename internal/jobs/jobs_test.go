package jobs

import (
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweepTask(t *testing.T) {
	task, err := NewSweepTask(TriggerStartup, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TaskTypeSweepPayments, task.Type())
	assert.JSONEq(t, `{"trigger":"startup"}`, string(task.Payload()))

	payload, err := ParseSweepPayload(task)
	require.NoError(t, err)
	assert.Equal(t, TriggerStartup, payload.Trigger)
}

func TestParseSweepPayload(t *testing.T) {
	payload, err := ParseSweepPayload(asynq.NewTask(TaskTypeSweepPayments, nil))
	require.NoError(t, err)
	assert.Equal(t, TriggerSchedule, payload.Trigger)

	_, err = ParseSweepPayload(asynq.NewTask(TaskTypeSweepPayments, []byte("{")))
	assert.Error(t, err)
}

func TestCronSpec(t *testing.T) {
	assert.Equal(t, "@every 30s", CronSpec(30*time.Second))
	assert.Equal(t, "@every 5m0s", CronSpec(5*time.Minute))
}

func TestScheduler_RegisterTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := NewScheduler(asynq.RedisClientOpt{Addr: mr.Addr()}, 0, log)
	require.NoError(t, s.RegisterTasks())
	assert.Equal(t, 30*time.Second, s.(*scheduler).interval)
}
