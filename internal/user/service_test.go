package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory().Users()
	svc := NewService(repo, testLogger())

	created, err := svc.Register(ctx, &telebot.User{ID: 42, Username: " alice ", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.UserID)
	assert.Equal(t, "alice", created.Username)

	_, err = svc.Register(ctx, &telebot.User{ID: 42, Username: "alice_new", FirstName: "Alice"})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", stored.Username)
}

func TestService_RegisterNil(t *testing.T) {
	svc := NewService(repository.NewMemory().Users(), testLogger())
	_, err := svc.Register(context.Background(), nil)
	assert.Error(t, err)
}

func TestService_GetUnknown(t *testing.T) {
	svc := NewService(repository.NewMemory().Users(), testLogger())

	_, err := svc.Get(context.Background(), 7)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

type failingRepo struct{}

func (failingRepo) Upsert(context.Context, *domain.User) error {
	return errors.New("db down")
}

func (failingRepo) FindByID(context.Context, int64) (*domain.User, error) {
	return nil, errors.New("db down")
}

func TestService_RegisterPropagatesErrors(t *testing.T) {
	svc := NewService(failingRepo{}, testLogger())

	_, err := svc.Register(context.Background(), &telebot.User{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
