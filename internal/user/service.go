// Package user keeps the users table in step with the Telegram profiles that contact the bot.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/repository"
)

// Service provides business operations over users.
type Service struct {
	repo repository.UserRepository
	log  *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// Register upserts the profile of a Telegram user. It runs on every contact, so
// renamed users are picked up on their next message.
func (s *Service) Register(ctx context.Context, telegramUser *telebot.User) (*domain.User, error) {
	if telegramUser == nil {
		return nil, errors.New("telegram user is nil")
	}

	u := &domain.User{
		UserID:    telegramUser.ID,
		Username:  strings.TrimSpace(telegramUser.Username),
		FirstName: strings.TrimSpace(telegramUser.FirstName),
		LastName:  strings.TrimSpace(telegramUser.LastName),
	}

	if err := s.repo.Upsert(ctx, u); err != nil {
		s.logError("register", telegramUser.ID, err)
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return u, nil
}

// Get returns a known user.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logError("get", userID, err)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) logError(op string, userID int64, err error) {
	s.log.Error("user service error",
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
