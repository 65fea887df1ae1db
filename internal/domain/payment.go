package domain

import "time"

// PendingPayment is an initiated purchase awaiting gateway confirmation.
type PendingPayment struct {
	Reference   string
	UserID      int64
	TicketCount int
	// Amount is in the currency's minor unit (kobo).
	Amount    int64
	CreatedAt time.Time
}
