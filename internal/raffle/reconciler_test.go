package raffle

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/payment"
	"github.com/Proton-105/raffle-bot/internal/repository"
)

func TestReconciler_ConfirmedPaymentAllocatesOnce(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	ctx := context.Background()
	f.addPending(t, "R1", 42, 2)
	f.gateway.confirm("R1")

	res, err := f.reconciler.Resolve(ctx, "R1", 42, SourceConfirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllocated, res.Outcome)
	assert.Len(t, res.Numbers(), 2)

	owned, err := f.mem.Tickets().ListByUser(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	_, err = f.mem.Pending().FindByReference(ctx, "R1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	messages := f.notifier.messagesFor(42)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].message, "Payment confirmed")
	require.Len(t, f.notifier.tickets, 1)
	assert.ElementsMatch(t, res.Numbers(), f.notifier.tickets[0].numbers)
}

func TestReconciler_UnconfirmedChangesNothing(t *testing.T) {
	tests := []struct {
		name   string
		result payment.VerifyResult
	}{
		{"not confirmed", payment.VerifyResult{Status: payment.NotConfirmed, GatewayStatus: "abandoned"}},
		{"transient failure", payment.VerifyResult{Status: payment.TransientFailure, Err: errBoom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testRaffleConfig(100))
			ctx := context.Background()
			f.addPending(t, "R1", 42, 2)
			f.gateway.set("R1", tt.result)

			res, err := f.reconciler.Resolve(ctx, "R1", 0, SourceSweep)
			require.NoError(t, err)
			assert.Equal(t, OutcomeUnconfirmed, res.Outcome)
			assert.Zero(t, f.ticketCount(t))

			_, err = f.mem.Pending().FindByReference(ctx, "R1")
			assert.NoError(t, err)
			assert.Empty(t, f.notifier.messages)
		})
	}
}

func TestReconciler_ResolvingSettledReferenceIsNoop(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	ctx := context.Background()
	f.addPending(t, "R1", 42, 2)
	f.gateway.confirm("R1")

	_, err := f.reconciler.Resolve(ctx, "R1", 0, SourceSweep)
	require.NoError(t, err)

	res, err := f.reconciler.Resolve(ctx, "R1", 42, SourceConfirm)
	assert.ErrorIs(t, err, ErrReferenceNotFound)
	assert.Equal(t, OutcomeNotFound, res.Outcome)

	assert.Equal(t, 2, f.ticketCount(t))
	assert.Len(t, f.notifier.messagesFor(42), 1)
}

func TestReconciler_SupplyExhausted(t *testing.T) {
	f := newFixture(t, testRaffleConfig(3))
	ctx := context.Background()
	f.addPending(t, "R1", 1, 2)
	f.addPending(t, "R2", 2, 1)
	f.addPending(t, "R3", 3, 1)
	f.gateway.confirm("R1", "R2", "R3")

	for _, r := range []string{"R1", "R2"} {
		res, err := f.reconciler.Resolve(ctx, r, 0, SourceSweep)
		require.NoError(t, err)
		require.Equal(t, OutcomeAllocated, res.Outcome)
	}

	res, err := f.reconciler.Resolve(ctx, "R3", 3, SourceConfirm)
	assert.ErrorIs(t, err, ErrInsufficientSupply)
	assert.Equal(t, OutcomeSupplyExhausted, res.Outcome)

	_, err = f.mem.Pending().FindByReference(ctx, "R3")
	assert.NoError(t, err, "pending record must survive supply exhaustion")
	assert.Equal(t, 3, f.ticketCount(t))

	alerts := f.notifier.messagesFor(900)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].message, "R3")
}

func TestReconciler_RejectsNonOwner(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	ctx := context.Background()
	f.addPending(t, "R1", 42, 1)
	f.gateway.confirm("R1")

	res, err := f.reconciler.Resolve(ctx, "R1", 7, SourceConfirm)
	assert.ErrorIs(t, err, ErrReferenceNotFound)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Zero(t, f.ticketCount(t))

	_, err = f.mem.Pending().FindByReference(ctx, "R1")
	assert.NoError(t, err)
}

func TestReconciler_UnderpaidStaysPending(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	ctx := context.Background()
	f.addPending(t, "R1", 42, 2)
	f.gateway.set("R1", payment.VerifyResult{Status: payment.Confirmed, Amount: 1000})

	res, err := f.reconciler.Resolve(ctx, "R1", 0, SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnconfirmed, res.Outcome)
	assert.Zero(t, f.ticketCount(t))
}

func TestReconciler_NotificationFailureKeepsAllocation(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	f.notifier.err = errBoom
	ctx := context.Background()
	f.addPending(t, "R1", 42, 1)
	f.gateway.confirm("R1")

	res, err := f.reconciler.Resolve(ctx, "R1", 0, SourceSweep)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllocated, res.Outcome)
	assert.Equal(t, 1, f.ticketCount(t))
}

func TestReconciler_ConcurrentResolveOfOneReference(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	ctx := context.Background()
	f.addPending(t, "R1", 42, 2)
	f.gateway.confirm("R1")

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[Outcome]int)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := SourceSweep
			if i%2 == 0 {
				source = SourceConfirm
			}
			res, _ := f.reconciler.Resolve(ctx, "R1", 0, source)
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[OutcomeAllocated])
	assert.Equal(t, workers-1, outcomes[OutcomeAlreadySettled]+outcomes[OutcomeNotFound])
	assert.Equal(t, 2, f.ticketCount(t))
	assert.Len(t, f.notifier.messagesFor(42), 1)
}

func TestReconciler_ConcurrentResolveNeverOversells(t *testing.T) {
	cfg := testRaffleConfig(20)
	cfg.AllocationRetries = 50
	f := newFixture(t, cfg)
	ctx := context.Background()

	const payments = 30
	for i := 0; i < payments; i++ {
		f.addPending(t, ref(i), int64(i+1), 1)
		f.gateway.confirm(ref(i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[Outcome]int)
	)
	for i := 0; i < payments; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _ := f.reconciler.Resolve(ctx, ref(i), 0, SourceWebhook)
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, outcomes[OutcomeAllocated])
	assert.Equal(t, 10, outcomes[OutcomeSupplyExhausted])

	numbers, err := f.mem.Tickets().AllocatedNumbers(ctx)
	require.NoError(t, err)
	assert.Len(t, numbers, 20)
	for n := range numbers {
		assert.True(t, n >= 1 && n <= 20)
	}

	remaining, err := f.mem.Pending().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}

func TestReconciler_Sweep(t *testing.T) {
	f := newFixture(t, testRaffleConfig(100))
	ctx := context.Background()
	f.addPending(t, "R1", 1, 1)
	f.addPending(t, "R2", 2, 2)
	f.addPending(t, "R3", 3, 1)
	f.gateway.confirm("R1", "R2")

	report, err := f.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Allocated)
	assert.Equal(t, 1, report.Unconfirmed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 3, f.ticketCount(t))

	report, err = f.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Unconfirmed)
}

func TestReconciler_SweepContinuesPastFailures(t *testing.T) {
	f := newFixture(t, testRaffleConfig(1))
	ctx := context.Background()
	f.addPending(t, "R1", 1, 1)
	f.addPending(t, "R2", 2, 1)
	f.addPending(t, "R3", 3, 1)
	f.gateway.confirm("R1", "R2", "R3")

	report, err := f.reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Allocated)
	assert.Equal(t, 2, report.Failed)
}

// listedPending serves ListAll from a snapshot taken earlier, as a sweep sees
// it when another path settles a reference mid-sweep.
type listedPending struct {
	repository.PendingPaymentRepository
	listed []domain.PendingPayment
}

func (p listedPending) ListAll(context.Context) ([]domain.PendingPayment, error) {
	return p.listed, nil
}

func TestReconciler_SweepSkipsReferenceSettledElsewhere(t *testing.T) {
	cfg := testRaffleConfig(100)
	f := newFixture(t, cfg)
	ctx := context.Background()
	f.addPending(t, "R1", 1, 2)
	f.gateway.confirm("R1")

	listed, err := f.mem.Pending().ListAll(ctx)
	require.NoError(t, err)

	res, err := f.reconciler.Resolve(ctx, "R1", 1, SourceConfirm)
	require.NoError(t, err)
	require.Equal(t, OutcomeAllocated, res.Outcome)

	sweeping := NewReconciler(
		f.gateway,
		listedPending{PendingPaymentRepository: f.mem.Pending(), listed: listed},
		f.allocator,
		f.notifier,
		f.stats,
		cfg,
		testLogger(),
	)

	report, err := sweeping.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Allocated)
	assert.Equal(t, 2, f.ticketCount(t))
	assert.Len(t, f.notifier.messagesFor(1), 1)
}
