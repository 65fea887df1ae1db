// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/raffle-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of purchase flow transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_by_state",
			Help: "Number of users per purchase flow state",
		},
		[]string{"state"},
	)
	reconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_reconciliations_total",
			Help: "Payment resolutions labeled by trigger source and outcome",
		},
		[]string{"source", "outcome"},
	)
	ticketsAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_tickets_allocated_total",
			Help: "Total number of ticket numbers allocated",
		},
	)
	allocationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_allocation_retries_total",
			Help: "Number of redraws after a ticket number conflict",
		},
	)
	ticketsSold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_tickets_sold",
			Help: "Current number of sold tickets",
		},
	)
	pendingPayments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_pending_payments",
			Help: "Current number of pending payments",
		},
	)
	stalePayments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raffle_stale_pending_payments",
			Help: "Pending payments older than the stale threshold",
		},
	)
	sweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raffle_sweep_duration_seconds",
			Help:    "Duration of a full reconciliation sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Payment gateway requests labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Payment gateway request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

var trackedStates = []state.State{
	state.StateChoosingQuantity,
	state.StateAwaitingPayment,
	state.StateError,
}

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	command = orUnknown(command)
	botCommandsTotal.WithLabelValues(command, orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks purchase flow transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordReconciliation counts one Resolve call.
func RecordReconciliation(source, outcome string) {
	reconciliationsTotal.WithLabelValues(orUnknown(source), orUnknown(outcome)).Inc()
}

// RecordTicketsAllocated adds n freshly allocated tickets.
func RecordTicketsAllocated(n int) {
	ticketsAllocatedTotal.Add(float64(n))
}

// RecordAllocationRetry counts a redraw after a conflict.
func RecordAllocationRetry() {
	allocationRetriesTotal.Inc()
}

// RecordSweep observes the duration of a sweep.
func RecordSweep(duration time.Duration) {
	sweepDurationSeconds.Observe(duration.Seconds())
}

// RecordGatewayRequest tracks one HTTP exchange with the payment gateway.
func RecordGatewayRequest(operation, status string, duration time.Duration) {
	operation = orUnknown(operation)
	gatewayRequestsTotal.WithLabelValues(operation, orUnknown(status)).Inc()
	if duration > 0 {
		gatewayRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// SetTicketsSold updates the sold tickets gauge.
func SetTicketsSold(count int) {
	ticketsSold.Set(float64(count))
}

// SetPendingPayments updates the pending payments gauge.
func SetPendingPayments(count int) {
	pendingPayments.Set(float64(count))
}

// SetStalePayments updates the stale pending payments gauge.
func SetStalePayments(count int) {
	stalePayments.Set(float64(count))
}

// SetUsersByState updates the gauge for the given state.
func SetUsersByState(state string, count int) {
	usersByState.WithLabelValues(orUnknown(state)).Set(float64(count))
}

// StateCollector periodically counts users per purchase flow state.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
	log      *slog.Logger
}

// NewStateCollector builds a metrics collector bound to the provided state machine.
func NewStateCollector(fsm state.StateMachine, interval time.Duration, log *slog.Logger) *StateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &StateCollector{fsm: fsm, interval: interval, log: log}
}

// Run polls the state machine until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.collect(ctx); err != nil {
			c.log.Warn("state metrics collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	stateCounts := make(map[string]int, len(states))
	for _, st := range states {
		stateCounts[string(st.Current())]++
	}

	usersByState.Reset()

	for _, tracked := range trackedStates {
		label := string(tracked)
		SetUsersByState(label, stateCounts[label])
		delete(stateCounts, label)
	}

	for label, count := range stateCounts {
		SetUsersByState(label, count)
	}

	return nil
}
