package domain

import "time"

// Ticket is one allocated raffle number.
type Ticket struct {
	TicketNumber     int
	UserID           int64
	PaymentReference string
	CreatedAt        time.Time
}

// TicketOwner joins a ticket with the owning user's public profile.
type TicketOwner struct {
	TicketNumber int
	UserID       int64
	Username     string
	FirstName    string
}

// DisplayName mirrors User.DisplayName for the joined read model.
func (o TicketOwner) DisplayName() string {
	return User{Username: o.Username, FirstName: o.FirstName}.DisplayName()
}

// Stats is a snapshot of raffle totals.
type Stats struct {
	TotalTickets    int   `json:"total_tickets"`
	TotalUsers      int   `json:"total_users"`
	TotalRevenue    int64 `json:"total_revenue"`
	PendingPayments int   `json:"pending_payments"`
	MaxTickets      int   `json:"max_tickets"`
}

// Available returns the number of unsold tickets.
func (s Stats) Available() int {
	if remaining := s.MaxTickets - s.TotalTickets; remaining > 0 {
		return remaining
	}
	return 0
}
