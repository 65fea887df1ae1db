package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/bot/handlers"
	"github.com/Proton-105/raffle-bot/internal/state"
)

// Dispatcher routes free-text updates to handlers registered per flow state.
type Dispatcher struct {
	fsm           state.StateMachine
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(fsm state.StateMachine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		fsm:           fsm,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Dispatch routes the update based on the user's current state.
func (d *Dispatcher) Dispatch(c telebot.Context) error {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil
	}

	handler, err := d.handlerFor(context.Background(), c.Sender().ID)
	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}

	return handler(c)
}

func (d *Dispatcher) handlerFor(ctx context.Context, userID int64) (handlers.Handler, error) {
	current, err := d.currentState(ctx, userID)
	if err != nil {
		return nil, err
	}

	handler := d.getHandler(current)
	if handler == nil {
		d.log.Debug("no handler registered for state", "state", current, "user_id", userID)
	}
	return handler, nil
}

func (d *Dispatcher) currentState(ctx context.Context, userID int64) (state.State, error) {
	if d.fsm == nil {
		return state.StateIdle, nil
	}

	userState, err := d.fsm.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, state.ErrStateNotFound) {
			return state.StateIdle, nil
		}
		return "", err
	}
	return userState.Current(), nil
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
