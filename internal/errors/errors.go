// Package errors defines the application error taxonomy shown at the chat boundary,
// together with retry and circuit breaker helpers for outbound calls.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation        = "E100"
	CodeDatabase          = "E200"
	CodeExternalAPI       = "E300"
	CodeState             = "E400"
	CodeRateLimit         = "E500"
	CodeSupplyExhausted   = "E600"
	CodeReferenceNotFound = "E610"
)

// DefaultUserMessage is shown when an error carries no user-facing text.
const DefaultUserMessage = "Something went wrong. Please try again or contact the raffle operator."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeDatabase,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: DefaultUserMessage,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	msg := fmt.Sprintf("External API error: %s", apiName)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}

	return &AppError{
		Code:        CodeExternalAPI,
		Message:     msg,
		UserMessage: "The payment service is temporarily unavailable. Please try again shortly.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewPermanentAPIError reports an upstream rejection that retrying will not fix.
func NewPermanentAPIError(apiName string, cause error) *AppError {
	err := NewExternalAPIError(apiName, cause)
	err.Retryable = false
	return err
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "That action is not available right now. Use /start to return to the menu.",
		Severity:    SeverityMedium,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Please try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
	}
}

// NewSupplyExhaustedError reports that fewer tickets remain than were requested.
func NewSupplyExhaustedError(available int, cause error) *AppError {
	userMessage := fmt.Sprintf("Not enough tickets left. Only %d remaining.", available)
	if available <= 0 {
		userMessage = "All tickets have been sold."
	}

	return &AppError{
		Code:        CodeSupplyExhausted,
		Message:     fmt.Sprintf("Ticket supply exhausted: %d available", available),
		UserMessage: userMessage,
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

// NewReferenceNotFoundError reports a confirmation for a payment the user does not own
// or that no longer awaits allocation.
func NewReferenceNotFoundError(reference string, cause error) *AppError {
	return &AppError{
		Code:        CodeReferenceNotFound,
		Message:     fmt.Sprintf("Payment reference not found: %s", reference),
		UserMessage: "Payment record not found. If you were charged, please contact the raffle operator.",
		Severity:    SeverityLow,
		cause:       cause,
	}
}
