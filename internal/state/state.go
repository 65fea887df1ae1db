package state

import "time"

// State represents a step in a user's purchase flow.
type State string

const (
	// StateIdle indicates that the user is browsing the menus.
	StateIdle State = "idle"
	// StateChoosingQuantity indicates that the buy menu is open.
	StateChoosingQuantity State = "choosing_quantity"
	// StateAwaitingPayment indicates that a checkout was opened and is waiting for payment.
	StateAwaitingPayment State = "awaiting_payment"
	// StateError indicates that the flow failed and requires recovery.
	StateError State = "error"
)

// Context keys stored alongside a state.
const (
	KeyReference   = "reference"
	KeyTicketCount = "ticket_count"
)

// UserState captures the current flow state for a Telegram user.
type UserState struct {
	UserID       int64                  `json:"user_id"`
	CurrentState State                  `json:"current_state"`
	Context      map[string]interface{} `json:"context"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Reference returns the checkout reference stored with the state, if any.
func (s *UserState) Reference() string {
	if s == nil || s.Context == nil {
		return ""
	}
	ref, _ := s.Context[KeyReference].(string)
	return ref
}

// Current returns the state, treating a missing record as idle.
func (s *UserState) Current() State {
	if s == nil || s.CurrentState == "" {
		return StateIdle
	}
	return s.CurrentState
}
