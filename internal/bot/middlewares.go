package bot

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/handlers"
	errors "github.com/Proton-105/raffle-bot/internal/errors"
	"github.com/Proton-105/raffle-bot/internal/middleware"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/state"
	"github.com/Proton-105/raffle-bot/internal/user"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := errors.DefaultUserMessage
					if errHandler != nil {
						appErr := &errors.AppError{
							Code:     errors.CodeState,
							Message:  fmt.Sprintf("panic recovered: %v", r),
							Severity: errors.SeverityCritical,
						}
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := errors.DefaultUserMessage
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), classify(err)); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				if c.Callback() != nil {
					_ = c.Respond()
				}
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// classify maps domain failures onto the application error taxonomy.
func classify(err error) error {
	var appErr *errors.AppError
	if stdErrors.As(err, &appErr) {
		return err
	}

	var supplyErr *raffle.SupplyError
	switch {
	case stdErrors.As(err, &supplyErr):
		return errors.NewSupplyExhaustedError(supplyErr.Available, err)
	case stdErrors.Is(err, raffle.ErrInsufficientSupply):
		return errors.NewSupplyExhaustedError(0, err)
	case stdErrors.Is(err, raffle.ErrReferenceNotFound):
		return errors.NewReferenceNotFoundError("", err)
	case stdErrors.Is(err, raffle.ErrGatewayUnavailable):
		return errors.NewExternalAPIError("paystack", err)
	case stdErrors.Is(err, raffle.ErrInvalidQuantity):
		return errors.NewValidationError(err.Error())
	case stdErrors.Is(err, state.ErrStateLocked), stdErrors.Is(err, state.ErrInvalidTransition):
		return errors.NewStateError(err.Error())
	default:
		return errors.NewDatabaseError(err)
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}
			action := middleware.Action(c)

			log.Debug("handling update", slog.Int64("user_id", userID), slog.String("action", action))
			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// RegisterMiddleware upserts the sender's profile on every update. A failed
// upsert is logged and the update still runs.
func RegisterMiddleware(users *user.Service, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if users != nil && c != nil && c.Sender() != nil {
				if _, err := users.Register(context.Background(), c.Sender()); err != nil {
					log.Warn("failed to register user", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
				}
			}

			return next(c)
		}
	}
}
