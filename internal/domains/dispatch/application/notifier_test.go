package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/memory"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/realtime"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

func next(t *testing.T, ch <-chan domain.Order) domain.Order {
	t.Helper()
	select {
	case order, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return order
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for order snapshot")
		return domain.Order{}
	}
}

func TestStatusNotifier_ForwardsPushedSnapshots(t *testing.T) {
	hub := realtime.NewHub()
	repo := memory.NewRepository(memory.WithPublisher(hub))
	seedOrder(t, repo, domain.Order{ID: testOrderID, Status: domain.StatusPaid})
	notifier := NewStatusNotifier(repo, hub, WithPollInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := notifier.Watch(ctx, testOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, next(t, updates).Status)

	_, err = repo.Claim(ctx, testOrderID, "BARRA")
	require.NoError(t, err)
	claimed := next(t, updates)
	assert.Equal(t, domain.StatusPreparing, claimed.Status)
	assert.Equal(t, domain.Station("BARRA"), claimed.DispatchStation)

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-updates
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// silentFeed never pushes, forcing the notifier onto its poll.
type silentFeed struct{}

func (silentFeed) Subscribe(context.Context, string) (<-chan domain.Order, func(), error) {
	return make(chan domain.Order), func() {}, nil
}

// countingReader counts status polls.
type countingReader struct {
	ports.OrderReader
	mu    sync.Mutex
	reads int
}

func (c *countingReader) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.OrderReader.FindByID(ctx, id)
}

func (c *countingReader) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func TestStatusNotifier_PollsWhilePendingThenStops(t *testing.T) {
	repo := memory.NewRepository()
	seedOrder(t, repo, domain.Order{ID: testOrderID, Status: domain.StatusPending})
	reader := &countingReader{OrderReader: repo}
	notifier := NewStatusNotifier(reader, silentFeed{}, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := notifier.Watch(ctx, testOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, next(t, updates).Status)

	// the poll keeps emitting pending snapshots until payment lands
	assert.Equal(t, domain.StatusPending, next(t, updates).Status)

	paid := domain.Order{ID: testOrderID, Status: domain.StatusPaid}
	seedOrder(t, repo, paid)

	var observed domain.Order
	for observed.Status != domain.StatusPaid {
		observed = next(t, updates)
	}

	reads := reader.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, reads, reader.count(), "poll must stop after a non-pending status")
}

func TestStatusNotifier_NoPollForPaidOrders(t *testing.T) {
	repo := memory.NewRepository()
	seedOrder(t, repo, domain.Order{ID: testOrderID, Status: domain.StatusReady})
	reader := &countingReader{OrderReader: repo}
	notifier := NewStatusNotifier(reader, silentFeed{}, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := notifier.Watch(ctx, testOrderID)
	require.NoError(t, err)
	next(t, updates)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, reader.count())
}

func TestStatusNotifier_UnknownOrderUnsubscribes(t *testing.T) {
	hub := realtime.NewHub()
	notifier := NewStatusNotifier(memory.NewRepository(), hub)

	_, err := notifier.Watch(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
	assert.Equal(t, 0, hub.Subscribers("missing"))

	_, err = notifier.Watch(context.Background(), " ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatusTracker_SuppressesDuplicates(t *testing.T) {
	var tracker StatusTracker
	assert.True(t, tracker.Observe(domain.StatusPending))
	assert.False(t, tracker.Observe(domain.StatusPending))
	assert.True(t, tracker.Observe(domain.StatusPaid))
	assert.False(t, tracker.Observe(domain.StatusPaid))

	status, ok := tracker.Known()
	assert.True(t, ok)
	assert.Equal(t, domain.StatusPaid, status)
}

func TestTransitions_RelaysOnlyStatusChanges(t *testing.T) {
	in := make(chan domain.Order, 4)
	in <- domain.Order{ID: "o-1", Status: domain.StatusPending}
	in <- domain.Order{ID: "o-1", Status: domain.StatusPending}
	in <- domain.Order{ID: "o-1", Status: domain.StatusPaid}
	in <- domain.Order{ID: "o-1", Status: domain.StatusPaid}
	close(in)

	var statuses []domain.Status
	for order := range Transitions(context.Background(), in) {
		statuses = append(statuses, order.Status)
	}
	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusPaid}, statuses)
}
