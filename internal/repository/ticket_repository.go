package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

// TicketRepository stores allocated raffle numbers.
type TicketRepository interface {
	CountAll(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Ticket, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Ticket, error)
	ListAllWithOwners(ctx context.Context) ([]domain.TicketOwner, error)
	AllocatedNumbers(ctx context.Context) (map[int]struct{}, error)
	// Settle atomically claims the pending payment identified by reference and
	// records one ticket per number for its owner.
	Settle(ctx context.Context, reference string, userID int64, numbers []int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewTicketRepository creates a SQL-backed ticket repository.
func NewTicketRepository(db *sql.DB, log *slog.Logger) TicketRepository {
	if log == nil {
		log = slog.Default()
	}
	return &ticketRepository{db: db, log: log}
}

func (r *ticketRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

func (r *ticketRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM tickets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ticket owners: %w", err)
	}
	return count, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	const query = `
		SELECT ticket_number, user_id, payment_reference, created_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY ticket_number ASC
	`
	return r.list(ctx, query, userID)
}

func (r *ticketRepository) ListRecent(ctx context.Context, limit int) ([]domain.Ticket, error) {
	const query = `
		SELECT ticket_number, user_id, payment_reference, created_at
		FROM tickets
		ORDER BY created_at DESC, ticket_number DESC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.TicketNumber, &t.UserID, &t.PaymentReference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}

	return tickets, nil
}

func (r *ticketRepository) ListAllWithOwners(ctx context.Context) ([]domain.TicketOwner, error) {
	const query = `
		SELECT t.ticket_number, t.user_id, COALESCE(u.username, ''), COALESCE(u.first_name, '')
		FROM tickets t
		LEFT JOIN users u ON u.user_id = t.user_id
		ORDER BY t.ticket_number ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select ticket owners: %w", err)
	}
	defer rows.Close()

	var owners []domain.TicketOwner
	for rows.Next() {
		var o domain.TicketOwner
		if err := rows.Scan(&o.TicketNumber, &o.UserID, &o.Username, &o.FirstName); err != nil {
			return nil, fmt.Errorf("scan ticket owner: %w", err)
		}
		owners = append(owners, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket owners: %w", err)
	}

	return owners, nil
}

func (r *ticketRepository) AllocatedNumbers(ctx context.Context) (map[int]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticket_number FROM tickets`)
	if err != nil {
		return nil, fmt.Errorf("select ticket numbers: %w", err)
	}
	defer rows.Close()

	numbers := make(map[int]struct{})
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan ticket number: %w", err)
		}
		numbers[n] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticket numbers: %w", err)
	}

	return numbers, nil
}

func (r *ticketRepository) Settle(ctx context.Context, reference string, userID int64, numbers []int) ([]domain.Ticket, error) {
	log := r.log.With(slog.String("reference", reference), slog.Int64("user_id", userID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settle transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("rollback error", slog.Any("error", rbErr))
		}
	}()

	// The row lock taken by DELETE serialises concurrent settles of one reference.
	var ticketCount int
	err = tx.QueryRowContext(ctx,
		`DELETE FROM pending_payments WHERE reference = $1 AND user_id = $2 RETURNING ticket_count`,
		reference, userID,
	).Scan(&ticketCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadySettled
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending payment: %w", err)
	}

	if ticketCount != len(numbers) {
		return nil, errTicketCountMismatch(len(numbers), ticketCount)
	}

	// Ascending insert order keeps lock acquisition consistent across settles.
	values := make([]int64, len(numbers))
	for i, n := range numbers {
		values[i] = int64(n)
	}
	slices.Sort(values)

	createdAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tickets (ticket_number, user_id, payment_reference, created_at)
		SELECT n, $2, $3, $4 FROM unnest($1::int[]) AS n
	`, pq.Array(values), userID, reference, createdAt); err != nil {
		if isTicketConflict(err) {
			log.Debug("ticket numbers contended", slog.Any("error", err))
			return nil, ErrAllocationConflict
		}
		return nil, fmt.Errorf("insert tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isTicketConflict(err) {
			return nil, ErrAllocationConflict
		}
		return nil, fmt.Errorf("commit settle transaction: %w", err)
	}

	tickets := make([]domain.Ticket, len(numbers))
	for i, n := range numbers {
		tickets[i] = domain.Ticket{
			TicketNumber:     n,
			UserID:           userID,
			PaymentReference: reference,
			CreatedAt:        createdAt,
		}
	}

	log.Info("payment settled", slog.Int("tickets", len(tickets)))
	return tickets, nil
}
