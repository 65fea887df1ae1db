package repository

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

const (
	claimPendingSQL  = "DELETE FROM pending_payments WHERE reference = $1 AND user_id = $2 RETURNING ticket_count"
	insertTicketsSQL = "INSERT INTO tickets (ticket_number, user_id, payment_reference, created_at)"
)

func newPostgresStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStore(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func expectClaim(mock sqlmock.Sqlmock, reference string, userID int64, rows *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(claimPendingSQL)).
		WithArgs(reference, userID).
		WillReturnRows(rows)
}

func TestPostgresTickets_SettleInsertsInAscendingOrder(t *testing.T) {
	store, mock := newPostgresStore(t)

	expectClaim(mock, "ref-1", 7, sqlmock.NewRows([]string{"ticket_count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(insertTicketsSQL)).
		WithArgs("{2,5,9}", int64(7), "ref-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tickets, err := store.Tickets.Settle(context.Background(), "ref-1", 7, []int{9, 2, 5})
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	got := make([]int, len(tickets))
	for i, ticket := range tickets {
		got[i] = ticket.TicketNumber
		assert.Equal(t, "ref-1", ticket.PaymentReference)
		assert.Equal(t, int64(7), ticket.UserID)
	}
	assert.Equal(t, []int{9, 2, 5}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTickets_SettleAlreadyClaimed(t *testing.T) {
	store, mock := newPostgresStore(t)

	expectClaim(mock, "ref-1", 7, sqlmock.NewRows([]string{"ticket_count"}))
	mock.ExpectRollback()

	_, err := store.Tickets.Settle(context.Background(), "ref-1", 7, []int{1})
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTickets_SettleInsertFailures(t *testing.T) {
	tests := []struct {
		name         string
		insertErr    error
		wantConflict bool
	}{
		{name: "number taken", insertErr: &pq.Error{Code: "23505"}, wantConflict: true},
		{name: "deadlock with concurrent settle", insertErr: &pq.Error{Code: "40P01"}, wantConflict: true},
		{name: "serialization failure", insertErr: &pq.Error{Code: "40001"}, wantConflict: true},
		{name: "connection lost", insertErr: assert.AnError, wantConflict: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newPostgresStore(t)

			expectClaim(mock, "ref-2", 3, sqlmock.NewRows([]string{"ticket_count"}).AddRow(2))
			mock.ExpectExec(regexp.QuoteMeta(insertTicketsSQL)).
				WithArgs("{5,7}", int64(3), "ref-2", sqlmock.AnyArg()).
				WillReturnError(tt.insertErr)
			mock.ExpectRollback()

			_, err := store.Tickets.Settle(context.Background(), "ref-2", 3, []int{7, 5})
			require.Error(t, err)
			if tt.wantConflict {
				assert.ErrorIs(t, err, ErrAllocationConflict)
			} else {
				assert.NotErrorIs(t, err, ErrAllocationConflict)
				assert.ErrorIs(t, err, assert.AnError)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresTickets_SettleCountMismatchRollsBack(t *testing.T) {
	store, mock := newPostgresStore(t)

	expectClaim(mock, "ref-3", 1, sqlmock.NewRows([]string{"ticket_count"}).AddRow(2))
	mock.ExpectRollback()

	_, err := store.Tickets.Settle(context.Background(), "ref-3", 1, []int{4, 8, 15})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 numbers drawn for 2 tickets")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPending_CreateDuplicate(t *testing.T) {
	store, mock := newPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pending_payments")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Pending.Create(context.Background(), &domain.PendingPayment{
		Reference:   "ref-1",
		UserID:      7,
		TicketCount: 2,
		Amount:      2000,
	})
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPending_Missing(t *testing.T) {
	store, mock := newPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM pending_payments WHERE reference = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"reference", "user_id", "ticket_count", "amount", "created_at"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM pending_payments WHERE reference = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.Pending.FindByReference(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Pending.Remove(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
