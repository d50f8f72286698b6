package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

func receive(t *testing.T, ch <-chan domain.Order) domain.Order {
	t.Helper()
	select {
	case order, ok := <-ch:
		require.True(t, ok, "channel closed")
		return order
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return domain.Order{}
	}
}

func TestHub_PublishReachesOnlyMatchingSubscribers(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	first, cancelFirst, err := hub.Subscribe(ctx, "o-1")
	require.NoError(t, err)
	defer cancelFirst()
	second, cancelSecond, err := hub.Subscribe(ctx, "o-1")
	require.NoError(t, err)
	defer cancelSecond()
	other, cancelOther, err := hub.Subscribe(ctx, "o-2")
	require.NoError(t, err)
	defer cancelOther()

	require.NoError(t, hub.Publish(ctx, domain.Order{ID: "o-1", Status: domain.StatusPaid}))

	assert.Equal(t, domain.StatusPaid, receive(t, first).Status)
	assert.Equal(t, domain.StatusPaid, receive(t, second).Status)
	select {
	case <-other:
		t.Fatal("unexpected snapshot for another order")
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), "o-1")
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers("o-1"))

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("o-1"))
}

func TestHub_ContextEndsSubscription(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch, unsubscribe, err := hub.Subscribe(ctx, "o-1")
	require.NoError(t, err)
	defer unsubscribe()

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers("o-1") == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestHub_SlowSubscriberKeepsLatest(t *testing.T) {
	hub := NewHub(WithBuffer(1))
	ch, cancel, err := hub.Subscribe(context.Background(), "o-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(context.Background(), domain.Order{ID: "o-1", Status: domain.StatusPaid}))
	require.NoError(t, hub.Publish(context.Background(), domain.Order{ID: "o-1", Status: domain.StatusPreparing}))

	assert.Equal(t, domain.StatusPreparing, receive(t, ch).Status)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ch, cancel, err := hub.Subscribe(context.Background(), "o-1")
	require.NoError(t, err)
	hub.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	_, _, err = hub.Subscribe(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrClosed)
}
