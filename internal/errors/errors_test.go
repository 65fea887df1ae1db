package errors

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorConstructors(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name      string
		err       *AppError
		code      string
		retryable bool
	}{
		{"validation", NewValidationError("bad count"), CodeValidation, false},
		{"database", NewDatabaseError(cause), CodeDatabase, true},
		{"external", NewExternalAPIError("paystack", cause), CodeExternalAPI, true},
		{"permanent", NewPermanentAPIError("paystack", cause), CodeExternalAPI, false},
		{"state", NewStateError("no checkout"), CodeState, false},
		{"rate limit", NewRateLimitError(5), CodeRateLimit, false},
		{"supply", NewSupplyExhaustedError(2, cause), CodeSupplyExhausted, false},
		{"reference", NewReferenceNotFoundError("R1", cause), CodeReferenceNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.UserMessage)
			assert.NotEmpty(t, tt.err.Error())
		})
	}

	assert.ErrorIs(t, NewDatabaseError(cause), cause)
	assert.Equal(t, "All tickets have been sold.", NewSupplyExhaustedError(0, nil).UserMessage)
	assert.Contains(t, NewSupplyExhaustedError(3, nil).UserMessage, "Only 3 remaining")
}

func TestHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.New(slog.NewTextHandler(&buf, nil)), false)

	msg, retryable := h.Handle(context.Background(), NewReferenceNotFoundError("R1", nil))
	assert.Contains(t, msg, "Payment record not found")
	assert.False(t, retryable)
	assert.Contains(t, buf.String(), "E610")

	msg, retryable = h.Handle(context.Background(), stderrors.New("raw"))
	assert.Equal(t, DefaultUserMessage, msg)
	assert.False(t, retryable)

	msg, _ = h.Handle(context.Background(), nil)
	assert.Empty(t, msg)
}

func TestWithRetryPolicy(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

	t.Run("retries retryable errors until success", func(t *testing.T) {
		calls := 0
		err := WithRetryPolicy(context.Background(), policy, func() error {
			calls++
			if calls < 3 {
				return NewExternalAPIError("paystack", nil)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := WithRetryPolicy(context.Background(), policy, func() error {
			calls++
			return NewPermanentAPIError("paystack", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := WithRetryPolicy(context.Background(), policy, func() error {
			calls++
			return NewExternalAPIError("paystack", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetryPolicy(ctx, policy, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker()
	now := time.Now()
	cb.now = func() time.Time { return now }

	failing := func() error { return NewExternalAPIError("paystack", nil) }
	for i := 0; i < MinRequests; i++ {
		_ = cb.Call(failing)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(TimeoutDuration)
	for i := 0; i < HalfOpenMaxRequests; i++ {
		require.NoError(t, cb.Call(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresPermanentErrors(t *testing.T) {
	cb := NewCircuitBreaker()
	for i := 0; i < MinRequests*2; i++ {
		_ = cb.Call(func() error { return NewPermanentAPIError("paystack", nil) })
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}
