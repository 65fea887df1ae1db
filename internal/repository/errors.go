// Package repository persists users, pending payments and tickets.
package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup or removal matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateReference is returned when a pending payment reference already exists.
	ErrDuplicateReference = errors.New("duplicate payment reference")
	// ErrAlreadySettled is returned by Settle when the pending record was already claimed.
	ErrAlreadySettled = errors.New("payment already settled")
	// ErrAllocationConflict is returned by Settle when a ticket number is already taken.
	ErrAllocationConflict = errors.New("ticket number already allocated")
)

const (
	uniqueViolation      = "23505"
	deadlockDetected     = "40P01"
	serializationFailure = "40001"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isTicketConflict reports errors a concurrent settle can cause on the
// tickets table. Each one means the drawn numbers must be refreshed.
func isTicketConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case uniqueViolation, deadlockDetected, serializationFailure:
		return true
	default:
		return false
	}
}

func errTicketCountMismatch(drawn, expected int) error {
	return fmt.Errorf("settle: %d numbers drawn for %d tickets", drawn, expected)
}
