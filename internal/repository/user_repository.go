package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Upsert inserts the user or refreshes its profile fields.
	Upsert(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, userID int64) (*domain.User, error)
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	if log == nil {
		log = slog.Default()
	}
	return &userRepository{db: db, log: log}
}

// FindByID retrieves a user by Telegram identifier.
func (r *userRepository) FindByID(ctx context.Context, userID int64) (*domain.User, error) {
	const query = `
		SELECT user_id, username, first_name, last_name, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	var user domain.User
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to fetch user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &user, nil
}

// Upsert persists the user, keeping created_at from the first contact.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (user_id, username, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.UserID,
		user.Username,
		user.FirstName,
		user.LastName,
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		r.log.Error("failed to upsert user", slog.Int64("user_id", user.UserID), slog.Any("error", err))
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}
