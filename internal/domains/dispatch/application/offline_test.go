package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/memory"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

func TestOfflineOutcomeFor(t *testing.T) {
	assert.Equal(t, types.OfflineDelivered, OfflineOutcomeFor(nil))
	assert.Equal(t, types.OfflineAlreadyServed, OfflineOutcomeFor(fmt.Errorf("replay: %w", ports.ErrAlreadyServed)))
	assert.Equal(t, types.OfflineNotFound, OfflineOutcomeFor(ports.ErrNotFound))
	assert.Equal(t, types.OfflineFailed, OfflineOutcomeFor(ports.ErrOrderClosed))
	assert.Equal(t, types.OfflineFailed, OfflineOutcomeFor(errors.New("connection reset")))
}

func TestReplayDelivery(t *testing.T) {
	repo := memory.NewRepository()
	seedOrder(t, repo, domain.Order{ID: "o-1", Status: domain.StatusReady})
	seedOrder(t, repo, domain.Order{ID: "o-2", Status: domain.StatusRefunded})
	svc := newTestService(repo)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	result, err := ReplayDelivery(context.Background(), svc, types.OfflineDelivery{OrderID: "o-1", OperatorID: "staff-1", ConfirmedAt: at})
	require.NoError(t, err)
	assert.Equal(t, types.OfflineDelivered, result.Outcome)

	stored, err := repo.FindByID(context.Background(), "o-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ServedAt)
	assert.True(t, stored.ServedAt.Equal(at))

	result, err = ReplayDelivery(context.Background(), svc, types.OfflineDelivery{OrderID: "o-1", OperatorID: "staff-2", ConfirmedAt: at})
	require.NoError(t, err)
	assert.Equal(t, types.OfflineAlreadyServed, result.Outcome)

	result, err = ReplayDelivery(context.Background(), svc, types.OfflineDelivery{OrderID: "missing", OperatorID: "staff-1", ConfirmedAt: at})
	require.NoError(t, err)
	assert.Equal(t, types.OfflineNotFound, result.Outcome)

	result, err = ReplayDelivery(context.Background(), svc, types.OfflineDelivery{OrderID: "o-2", OperatorID: "staff-1", ConfirmedAt: at})
	require.ErrorIs(t, err, ports.ErrOrderClosed)
	assert.Equal(t, types.OfflineFailed, result.Outcome)
	assert.NotEmpty(t, result.Message)
}
