package raffle

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/Proton-105/raffle-bot/internal/domain"
)

var errInvalidBound = errors.New("random bound must be positive")

// RandomIntFunc returns a uniform integer in [0, max).
type RandomIntFunc func(max int) (int, error)

var drawRandomInt RandomIntFunc = secureRandomInt

func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidBound
	}

	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// SampleWithoutReplacement returns k distinct elements of pool chosen uniformly,
// using a partial Fisher-Yates shuffle over a copy of pool.
func SampleWithoutReplacement(pool []int, k int, randInt RandomIntFunc) ([]int, error) {
	if k < 0 || k > len(pool) {
		return nil, fmt.Errorf("sample %d of %d: %w", k, len(pool), ErrInsufficientSupply)
	}
	if randInt == nil {
		randInt = drawRandomInt
	}

	shuffled := make([]int, len(pool))
	copy(shuffled, pool)

	for i := 0; i < k; i++ {
		j, err := randInt(len(shuffled) - i)
		if err != nil {
			return nil, fmt.Errorf("draw random index: %w", err)
		}
		j += i
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled[:k], nil
}

// DrawResult describes a completed winner draw.
type DrawResult struct {
	Winner       domain.TicketOwner `json:"winner"`
	TotalTickets int                `json:"total_tickets"`
	Participants int                `json:"participants"`
}

// PickWinner selects one settled ticket uniformly at random.
func PickWinner(tickets []domain.TicketOwner, randInt RandomIntFunc) (*DrawResult, error) {
	if len(tickets) == 0 {
		return nil, ErrNoTickets
	}
	if randInt == nil {
		randInt = drawRandomInt
	}

	idx, err := randInt(len(tickets))
	if err != nil {
		return nil, fmt.Errorf("failed to pick random ticket: %w", err)
	}

	participants := make(map[int64]struct{})
	for _, t := range tickets {
		participants[t.UserID] = struct{}{}
	}

	return &DrawResult{
		Winner:       tickets[idx],
		TotalTickets: len(tickets),
		Participants: len(participants),
	}, nil
}
