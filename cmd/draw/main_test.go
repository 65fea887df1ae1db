package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/raffle"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
)

var testRaffle = config.RaffleConfig{
	Title:            "Friends Raffle Draw",
	TicketPrice:      100000,
	MaxTickets:       1000,
	CurrencySymbol:   "₦",
	PrizePoolPercent: 80,
}

func seed(t *testing.T, store *repository.Store, reference string, user domain.User, numbers ...int) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Users.Upsert(ctx, &user))
	require.NoError(t, store.Pending.Create(ctx, &domain.PendingPayment{
		Reference:   reference,
		UserID:      user.UserID,
		TicketCount: len(numbers),
		Amount:      int64(len(numbers)) * testRaffle.TicketPrice,
	}))
	_, err := store.Tickets.Settle(ctx, reference, user.UserID, numbers)
	require.NoError(t, err)
}

func TestDraw(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, "r1", domain.User{UserID: 1, Username: "ada"}, 10)
	seed(t, store, "r2", domain.User{UserID: 2, FirstName: "Grace"}, 20, 30)

	var bound int
	pickLast := raffle.RandomIntFunc(func(max int) (int, error) {
		bound = max
		return max - 1, nil
	})

	result, err := draw(context.Background(), store, testRaffle, pickLast)
	require.NoError(t, err)

	assert.Equal(t, 3, bound)
	assert.Equal(t, 2, result.Participants)
	assert.Equal(t, 3, result.Stats.TotalTickets)
	assert.Equal(t, int64(300000), result.Stats.TotalRevenue)
	assert.Equal(t, int64(240000), result.PrizePool)
	assert.Equal(t, 30, result.Winner.TicketNumber)
	assert.Equal(t, "Grace", result.Winner.DisplayName())

	var out bytes.Buffer
	require.NoError(t, printResult(&out, result, testRaffle))
	assert.Contains(t, out.String(), "Tickets sold: 3 of 1000")
	assert.Contains(t, out.String(), "Prize pool: ₦2,400 (80%)")
}

func TestDraw_NoTickets(t *testing.T) {
	_, err := draw(context.Background(), repository.NewMemoryStore(), testRaffle, nil)
	assert.ErrorIs(t, err, raffle.ErrNoTickets)
}
