package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

// Store groups the repositories backed by a single database.
type Store struct {
	Users   UserRepository
	Pending PendingPaymentRepository
	Tickets TicketRepository

	ping  func(ctx context.Context) error
	close func() error
}

// NewPostgresStore builds repositories on top of an open *sql.DB.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *Store {
	return &Store{
		Users:   NewUserRepository(db, log),
		Pending: NewPendingPaymentRepository(db, log),
		Tickets: NewTicketRepository(db, log),
		ping:    db.PingContext,
		close:   db.Close,
	}
}

// NewMemoryStore builds repositories sharing one in-process store.
func NewMemoryStore() *Store {
	mem := NewMemory()
	return &Store{
		Users:   mem.Users(),
		Pending: mem.Pending(),
		Tickets: mem.Tickets(),
		ping:    func(context.Context) error { return nil },
		close:   func() error { return nil },
	}
}

// Ping reports whether the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backing database.
func (s *Store) Close() error {
	return s.close()
}
