package raffle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

func TestAllocator_NumbersAreDistinctAndInRange(t *testing.T) {
	f := newFixture(t, testRaffleConfig(10))
	ctx := context.Background()

	f.addPending(t, "R1", 1, 3)
	f.addPending(t, "R2", 2, 3)
	f.addPending(t, "R3", 3, 4)

	seen := make(map[int]struct{})
	for _, p := range []domain.PendingPayment{
		{Reference: "R1", UserID: 1, TicketCount: 3},
		{Reference: "R2", UserID: 2, TicketCount: 3},
		{Reference: "R3", UserID: 3, TicketCount: 4},
	} {
		tickets, err := f.allocator.Allocate(ctx, p)
		require.NoError(t, err)
		require.Len(t, tickets, p.TicketCount)

		for _, ticket := range tickets {
			assert.GreaterOrEqual(t, ticket.TicketNumber, 1)
			assert.LessOrEqual(t, ticket.TicketNumber, 10)
			assert.Equal(t, p.Reference, ticket.PaymentReference)
			assert.Equal(t, p.UserID, ticket.UserID)
			_, dup := seen[ticket.TicketNumber]
			assert.False(t, dup, "number %d allocated twice", ticket.TicketNumber)
			seen[ticket.TicketNumber] = struct{}{}
		}
	}

	assert.Len(t, seen, 10)
}

func TestAllocator_InsufficientSupplyLeavesPending(t *testing.T) {
	f := newFixture(t, testRaffleConfig(3))
	ctx := context.Background()

	f.addPending(t, "R1", 1, 2)
	f.addPending(t, "R2", 2, 2)

	_, err := f.allocator.Allocate(ctx, domain.PendingPayment{Reference: "R1", UserID: 1, TicketCount: 2})
	require.NoError(t, err)

	_, err = f.allocator.Allocate(ctx, domain.PendingPayment{Reference: "R2", UserID: 2, TicketCount: 2})
	require.ErrorIs(t, err, ErrInsufficientSupply)

	var supplyErr *SupplyError
	require.True(t, errors.As(err, &supplyErr))
	assert.Equal(t, 1, supplyErr.Available)
	assert.Equal(t, 2, supplyErr.Requested)

	_, err = f.mem.Pending().FindByReference(ctx, "R2")
	assert.NoError(t, err)
}

func TestAllocator_RedrawsOnConflict(t *testing.T) {
	f := newFixture(t, testRaffleConfig(10))
	ctx := context.Background()
	f.addPending(t, "R1", 1, 1)

	tickets := &conflictingTickets{TicketRepository: f.mem.Tickets(), conflicts: 2}
	allocator := NewAllocator(tickets, testRaffleConfig(10), testLogger())

	allocated, err := allocator.Allocate(ctx, domain.PendingPayment{Reference: "R1", UserID: 1, TicketCount: 1})
	require.NoError(t, err)
	assert.Len(t, allocated, 1)
	assert.Equal(t, 3, tickets.calls)
}

func TestAllocator_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t, testRaffleConfig(10))
	ctx := context.Background()
	f.addPending(t, "R1", 1, 1)

	cfg := testRaffleConfig(10)
	cfg.AllocationRetries = 2
	tickets := &conflictingTickets{TicketRepository: f.mem.Tickets(), conflicts: 10}
	allocator := NewAllocator(tickets, cfg, testLogger())

	_, err := allocator.Allocate(ctx, domain.PendingPayment{Reference: "R1", UserID: 1, TicketCount: 1})
	require.ErrorIs(t, err, ErrAllocationConflict)
	assert.Equal(t, 3, tickets.calls)

	_, err = f.mem.Pending().FindByReference(ctx, "R1")
	assert.NoError(t, err)
}

func TestAllocator_UsesInjectedRandomness(t *testing.T) {
	f := newFixture(t, testRaffleConfig(5))
	f.allocator.randInt = sequenceRandom(4, 0)
	f.addPending(t, "R1", 1, 2)

	tickets, err := f.allocator.Allocate(context.Background(), domain.PendingPayment{Reference: "R1", UserID: 1, TicketCount: 2})
	require.NoError(t, err)

	// pool [1 2 3 4 5]: swap(0,4) -> 5 first, then swap(1,1) -> 2.
	assert.Equal(t, 5, tickets[0].TicketNumber)
	assert.Equal(t, 2, tickets[1].TicketNumber)
}

func TestAllocator_AlreadySettled(t *testing.T) {
	f := newFixture(t, testRaffleConfig(10))

	_, err := f.allocator.Allocate(context.Background(), domain.PendingPayment{Reference: "gone", UserID: 1, TicketCount: 1})
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestAllocator_Available(t *testing.T) {
	f := newFixture(t, testRaffleConfig(4))
	f.addPending(t, "R1", 1, 3)

	_, err := f.allocator.Allocate(context.Background(), domain.PendingPayment{Reference: "R1", UserID: 1, TicketCount: 3})
	require.NoError(t, err)

	available, err := f.allocator.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, available)
}
