// Package raffle allocates ticket numbers and reconciles gateway payments with
// the pending payment store.
package raffle

import (
	"errors"
	"fmt"

	"github.com/Proton-105/raffle-bot/internal/repository"
)

var (
	// ErrInsufficientSupply is returned when fewer numbers remain than requested.
	ErrInsufficientSupply = errors.New("insufficient ticket supply")
	// ErrReferenceNotFound is returned when a confirmed payment has no pending record
	// owned by the caller.
	ErrReferenceNotFound = errors.New("payment reference not found")
	// ErrGatewayUnavailable is returned when a checkout could not be opened.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidQuantity is returned for a ticket count outside the purchase options.
	ErrInvalidQuantity = errors.New("invalid ticket quantity")
	// ErrNoTickets is returned by the draw when nothing was sold.
	ErrNoTickets = errors.New("no tickets sold")

	ErrAlreadySettled     = repository.ErrAlreadySettled
	ErrAllocationConflict = repository.ErrAllocationConflict
	ErrDuplicateReference = repository.ErrDuplicateReference
)

// SupplyError reports how many numbers were available when a request could not be met.
type SupplyError struct {
	Requested int
	Available int
}

func (e *SupplyError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", ErrInsufficientSupply, e.Requested, e.Available)
}

func (e *SupplyError) Unwrap() error {
	return ErrInsufficientSupply
}
