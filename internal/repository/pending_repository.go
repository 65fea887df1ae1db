package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

// PendingPaymentRepository stores initiated, unconfirmed purchases.
type PendingPaymentRepository interface {
	Create(ctx context.Context, payment *domain.PendingPayment) error
	ListAll(ctx context.Context) ([]domain.PendingPayment, error)
	FindByReference(ctx context.Context, reference string) (*domain.PendingPayment, error)
	Remove(ctx context.Context, reference string) error
	Count(ctx context.Context) (int, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.PendingPayment, error)
}

type pendingRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPendingPaymentRepository creates a SQL-backed pending payment repository.
func NewPendingPaymentRepository(db *sql.DB, log *slog.Logger) PendingPaymentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &pendingRepository{db: db, log: log}
}

const pendingColumns = `reference, user_id, ticket_count, amount, created_at`

func (r *pendingRepository) Create(ctx context.Context, payment *domain.PendingPayment) error {
	const query = `
		INSERT INTO pending_payments (reference, user_id, ticket_count, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		payment.Reference,
		payment.UserID,
		payment.TicketCount,
		payment.Amount,
		payment.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		r.log.Error("failed to create pending payment", slog.String("reference", payment.Reference), slog.Any("error", err))
		return fmt.Errorf("insert pending payment: %w", err)
	}

	return nil
}

func (r *pendingRepository) ListAll(ctx context.Context) ([]domain.PendingPayment, error) {
	return r.list(ctx, `SELECT `+pendingColumns+` FROM pending_payments ORDER BY created_at ASC`)
}

func (r *pendingRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.PendingPayment, error) {
	return r.list(ctx, `SELECT `+pendingColumns+` FROM pending_payments WHERE created_at < $1 ORDER BY created_at ASC`, cutoff)
}

func (r *pendingRepository) list(ctx context.Context, query string, args ...any) ([]domain.PendingPayment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PendingPayment
	for rows.Next() {
		var p domain.PendingPayment
		if err := rows.Scan(&p.Reference, &p.UserID, &p.TicketCount, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending payments: %w", err)
	}

	return payments, nil
}

func (r *pendingRepository) FindByReference(ctx context.Context, reference string) (*domain.PendingPayment, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_payments WHERE reference = $1`

	var p domain.PendingPayment
	if err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&p.Reference, &p.UserID, &p.TicketCount, &p.Amount, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select pending payment: %w", err)
	}

	return &p, nil
}

func (r *pendingRepository) Remove(ctx context.Context, reference string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_payments WHERE reference = $1`, reference)
	if err != nil {
		return fmt.Errorf("delete pending payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pending payment rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *pendingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_payments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending payments: %w", err)
	}
	return count, nil
}
