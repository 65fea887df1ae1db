package raffle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Proton-105/raffle-bot/internal/domain"
	"github.com/Proton-105/raffle-bot/internal/payment"
	"github.com/Proton-105/raffle-bot/internal/repository"
	"github.com/Proton-105/raffle-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRaffleConfig(maxTickets int) config.RaffleConfig {
	return config.RaffleConfig{
		Title:             "Friends Raffle Draw",
		TicketPrice:       1000,
		MaxTickets:        maxTickets,
		CurrencySymbol:    "₦",
		PurchaseOptions:   []int{1, 2, 5, 10},
		PrizePoolPercent:  80,
		AdminIDs:          []int64{900},
		AllocationRetries: 5,
		RecentLimit:       10,
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	results  map[string]payment.VerifyResult
	verifies map[string]int
	startErr error
	started  []payment.StartRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		results:  make(map[string]payment.VerifyResult),
		verifies: make(map[string]int),
	}
}

func (g *fakeGateway) confirm(refs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ref := range refs {
		g.results[ref] = payment.VerifyResult{Status: payment.Confirmed, GatewayStatus: "success"}
	}
}

func (g *fakeGateway) set(ref string, result payment.VerifyResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[ref] = result
}

func (g *fakeGateway) Start(_ context.Context, req payment.StartRequest) (*payment.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return nil, g.startErr
	}
	g.started = append(g.started, req)
	return &payment.Transaction{
		Reference:        req.Reference,
		AuthorizationURL: "https://checkout.example.com/" + req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) payment.VerifyResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies[reference]++
	if result, ok := g.results[reference]; ok {
		return result
	}
	return payment.VerifyResult{Status: payment.NotConfirmed, GatewayStatus: "abandoned"}
}

type notification struct {
	userID  int64
	message string
	numbers []int
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notification
	tickets  []notification
	err      error
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID int64, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, notification{userID: userID, message: message})
	return n.err
}

func (n *fakeNotifier) NotifyUserWithTickets(_ context.Context, userID int64, numbers []int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tickets = append(n.tickets, notification{userID: userID, numbers: numbers})
	return n.err
}

func (n *fakeNotifier) messagesFor(userID int64) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, m := range n.messages {
		if m.userID == userID {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	mem        *repository.Memory
	gateway    *fakeGateway
	notifier   *fakeNotifier
	allocator  *Allocator
	reconciler *Reconciler
	stats      *StatsService
}

func newFixture(t *testing.T, cfg config.RaffleConfig) *fixture {
	t.Helper()

	mem := repository.NewMemory()
	f := &fixture{
		mem:      mem,
		gateway:  newFakeGateway(),
		notifier: &fakeNotifier{},
	}
	f.allocator = NewAllocator(mem.Tickets(), cfg, testLogger())
	f.stats = NewStatsService(mem.Tickets(), mem.Pending(), nil, cfg, testLogger())
	f.reconciler = NewReconciler(f.gateway, mem.Pending(), f.allocator, f.notifier, f.stats, cfg, testLogger())
	return f
}

func (f *fixture) addPending(t *testing.T, ref string, userID int64, count int) {
	t.Helper()
	require.NoError(t, f.mem.Pending().Create(context.Background(), &domain.PendingPayment{
		Reference:   ref,
		UserID:      userID,
		TicketCount: count,
		Amount:      int64(count) * 1000,
	}))
}

func (f *fixture) ticketCount(t *testing.T) int {
	t.Helper()
	n, err := f.mem.Tickets().CountAll(context.Background())
	require.NoError(t, err)
	return n
}

// sequenceRandom replays fixed indexes, clamped to the bound.
func sequenceRandom(values ...int) RandomIntFunc {
	var mu sync.Mutex
	i := 0
	return func(max int) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		if max <= 0 {
			return 0, errInvalidBound
		}
		v := 0
		if i < len(values) {
			v = values[i]
		}
		i++
		if v >= max {
			v = max - 1
		}
		return v, nil
	}
}

// conflictingTickets fails the first n Settle calls with ErrAllocationConflict.
type conflictingTickets struct {
	repository.TicketRepository
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (c *conflictingTickets) Settle(ctx context.Context, reference string, userID int64, numbers []int) ([]domain.Ticket, error) {
	c.mu.Lock()
	c.calls++
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return nil, ErrAllocationConflict
	}
	c.mu.Unlock()
	return c.TicketRepository.Settle(ctx, reference, userID, numbers)
}

var errBoom = errors.New("boom")

func ref(i int) string {
	return fmt.Sprintf("R%d", i)
}
