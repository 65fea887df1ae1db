package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/state"
)

type fakeStates struct {
	states []*state.UserState
}

func (f fakeStates) GetState(context.Context, int64) (*state.UserState, error) { return nil, nil }
func (f fakeStates) TransitionTo(context.Context, int64, state.State, map[string]interface{}) error {
	return nil
}
func (f fakeStates) ClearState(context.Context, int64) error { return nil }
func (f fakeStates) GetAllStates(context.Context) ([]*state.UserState, error) {
	return f.states, nil
}

func TestRecordReconciliation(t *testing.T) {
	before := testutil.ToFloat64(reconciliationsTotal.WithLabelValues("sweep", "allocated"))
	RecordReconciliation("sweep", "allocated")
	assert.Equal(t, before+1, testutil.ToFloat64(reconciliationsTotal.WithLabelValues("sweep", "allocated")))

	RecordReconciliation("", "")
	assert.GreaterOrEqual(t, testutil.ToFloat64(reconciliationsTotal.WithLabelValues("unknown", "unknown")), 1.0)
}

func TestGauges(t *testing.T) {
	SetTicketsSold(12)
	SetPendingPayments(3)
	SetStalePayments(1)

	assert.Equal(t, 12.0, testutil.ToFloat64(ticketsSold))
	assert.Equal(t, 3.0, testutil.ToFloat64(pendingPayments))
	assert.Equal(t, 1.0, testutil.ToFloat64(stalePayments))
}

func TestRecordTicketsAllocated(t *testing.T) {
	before := testutil.ToFloat64(ticketsAllocatedTotal)
	RecordTicketsAllocated(5)
	assert.Equal(t, before+5, testutil.ToFloat64(ticketsAllocatedTotal))
}

func TestStateCollector_Collect(t *testing.T) {
	collector := NewStateCollector(fakeStates{states: []*state.UserState{
		{UserID: 1, CurrentState: state.StateAwaitingPayment},
		{UserID: 2, CurrentState: state.StateAwaitingPayment},
		{UserID: 3, CurrentState: state.StateChoosingQuantity},
	}}, time.Second, nil)

	require.NoError(t, collector.collect(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(usersByState.WithLabelValues("awaiting_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(usersByState.WithLabelValues("choosing_quantity")))
	assert.Equal(t, 0.0, testutil.ToFloat64(usersByState.WithLabelValues("error")))
}
