package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

// Memory is an in-process store used for local runs and tests. All three
// repository views share one mutex so Settle is atomic across them.
type Memory struct {
	mu      sync.Mutex
	users   map[int64]domain.User
	pending map[string]domain.PendingPayment
	tickets map[int]domain.Ticket
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int64]domain.User),
		pending: make(map[string]domain.PendingPayment),
		tickets: make(map[int]domain.Ticket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user repository view.
func (m *Memory) Users() UserRepository { return memoryUsers{m} }

// Pending returns the pending payment repository view.
func (m *Memory) Pending() PendingPaymentRepository { return memoryPending{m} }

// Tickets returns the ticket repository view.
func (m *Memory) Tickets() TicketRepository { return memoryTickets{m} }

type memoryUsers struct{ m *Memory }

func (r memoryUsers) Upsert(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.now()
	stored, ok := r.m.users[user.UserID]
	if !ok {
		stored.CreatedAt = now
	}
	stored.UserID = user.UserID
	stored.Username = user.Username
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.UpdatedAt = now
	r.m.users[user.UserID] = stored

	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r memoryUsers) FindByID(_ context.Context, userID int64) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

type memoryPending struct{ m *Memory }

func (r memoryPending) Create(_ context.Context, payment *domain.PendingPayment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, exists := r.m.pending[payment.Reference]; exists {
		return ErrDuplicateReference
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = r.m.now()
	}
	r.m.pending[payment.Reference] = *payment
	return nil
}

func (r memoryPending) ListAll(_ context.Context) ([]domain.PendingPayment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	return r.m.pendingWhere(func(domain.PendingPayment) bool { return true }), nil
}

func (r memoryPending) ListOlderThan(_ context.Context, cutoff time.Time) ([]domain.PendingPayment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	return r.m.pendingWhere(func(p domain.PendingPayment) bool { return p.CreatedAt.Before(cutoff) }), nil
}

func (r memoryPending) FindByReference(_ context.Context, reference string) (*domain.PendingPayment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	payment, ok := r.m.pending[reference]
	if !ok {
		return nil, ErrNotFound
	}
	return &payment, nil
}

func (r memoryPending) Remove(_ context.Context, reference string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.pending[reference]; !ok {
		return ErrNotFound
	}
	delete(r.m.pending, reference)
	return nil
}

func (r memoryPending) Count(_ context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	return len(r.m.pending), nil
}

// pendingWhere must be called with mu held.
func (m *Memory) pendingWhere(keep func(domain.PendingPayment) bool) []domain.PendingPayment {
	payments := make([]domain.PendingPayment, 0, len(m.pending))
	for _, p := range m.pending {
		if keep(p) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].Reference < payments[j].Reference
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments
}

type memoryTickets struct{ m *Memory }

func (r memoryTickets) CountAll(_ context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	return len(r.m.tickets), nil
}

func (r memoryTickets) CountUsers(_ context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	owners := make(map[int64]struct{})
	for _, t := range r.m.tickets {
		owners[t.UserID] = struct{}{}
	}
	return len(owners), nil
}

func (r memoryTickets) ListByUser(_ context.Context, userID int64) ([]domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var tickets []domain.Ticket
	for _, t := range r.m.tickets {
		if t.UserID == userID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].TicketNumber < tickets[j].TicketNumber })
	return tickets, nil
}

func (r memoryTickets) ListRecent(_ context.Context, limit int) ([]domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	tickets := make([]domain.Ticket, 0, len(r.m.tickets))
	for _, t := range r.m.tickets {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].TicketNumber > tickets[j].TicketNumber
		}
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	if limit >= 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func (r memoryTickets) ListAllWithOwners(_ context.Context) ([]domain.TicketOwner, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	owners := make([]domain.TicketOwner, 0, len(r.m.tickets))
	for _, t := range r.m.tickets {
		user := r.m.users[t.UserID]
		owners = append(owners, domain.TicketOwner{
			TicketNumber: t.TicketNumber,
			UserID:       t.UserID,
			Username:     user.Username,
			FirstName:    user.FirstName,
		})
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].TicketNumber < owners[j].TicketNumber })
	return owners, nil
}

func (r memoryTickets) AllocatedNumbers(_ context.Context) (map[int]struct{}, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	numbers := make(map[int]struct{}, len(r.m.tickets))
	for n := range r.m.tickets {
		numbers[n] = struct{}{}
	}
	return numbers, nil
}

func (r memoryTickets) Settle(_ context.Context, reference string, userID int64, numbers []int) ([]domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	payment, ok := r.m.pending[reference]
	if !ok || payment.UserID != userID {
		return nil, ErrAlreadySettled
	}
	if payment.TicketCount != len(numbers) {
		return nil, errTicketCountMismatch(len(numbers), payment.TicketCount)
	}

	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if _, taken := r.m.tickets[n]; taken {
			return nil, ErrAllocationConflict
		}
		if _, dup := seen[n]; dup || n <= 0 {
			return nil, ErrAllocationConflict
		}
		seen[n] = struct{}{}
	}

	delete(r.m.pending, reference)

	now := r.m.now()
	tickets := make([]domain.Ticket, len(numbers))
	for i, n := range numbers {
		tickets[i] = domain.Ticket{
			TicketNumber:     n,
			UserID:           userID,
			PaymentReference: reference,
			CreatedAt:        now,
		}
		r.m.tickets[n] = tickets[i]
	}

	return tickets, nil
}
