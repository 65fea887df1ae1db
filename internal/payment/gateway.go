// Package payment talks to the card payment gateway.
package payment

import (
	"context"
	"strings"
)

// StartRequest describes a checkout to open with the gateway.
type StartRequest struct {
	Reference string
	Email     string
	// Amount is in the currency's minor unit.
	Amount   int64
	Metadata map[string]any
}

// Transaction is an opened checkout.
type Transaction struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// VerifyStatus classifies a verification attempt.
type VerifyStatus int

const (
	// NotConfirmed means the gateway answered and the payment is not (yet) successful.
	NotConfirmed VerifyStatus = iota
	// Confirmed means the gateway reports a successful charge.
	Confirmed
	// TransientFailure means the gateway could not be reached after retries.
	TransientFailure
)

func (s VerifyStatus) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case TransientFailure:
		return "transient_failure"
	default:
		return "not_confirmed"
	}
}

// VerifyResult is the typed outcome of Gateway.Verify.
type VerifyResult struct {
	Status VerifyStatus
	// Amount paid in minor units, zero when unknown.
	Amount int64
	// GatewayStatus is the raw transaction status reported upstream.
	GatewayStatus string
	Err           error
}

// Confirmed reports whether the payment succeeded.
func (r VerifyResult) Confirmed() bool {
	return r.Status == Confirmed
}

// Gateway opens and verifies payments. Verify is conservative: anything other
// than an explicit success is reported as not confirmed.
type Gateway interface {
	Start(ctx context.Context, req StartRequest) (*Transaction, error)
	Verify(ctx context.Context, reference string) VerifyResult
}

var placeholderReferences = map[string]struct{}{
	"":            {},
	"reference":   {},
	"<reference>": {},
	"ref":         {},
}

// IsPlaceholderReference reports references that can never identify a real payment.
func IsPlaceholderReference(reference string) bool {
	_, ok := placeholderReferences[strings.ToLower(strings.TrimSpace(reference))]
	return ok
}
