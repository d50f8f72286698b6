package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchmemory "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/memory"
	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/adapters/memory"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
)

// gatedDispatcher blocks every call until the test releases it.
type gatedDispatcher struct {
	entered chan struct{}
	release chan struct{}
	outcome *dispatchtypes.ScanOutcome
}

func newGatedDispatcher(outcome *dispatchtypes.ScanOutcome) *gatedDispatcher {
	return &gatedDispatcher{entered: make(chan struct{}, 1), release: make(chan struct{}), outcome: outcome}
}

func (g *gatedDispatcher) Scan(context.Context, dispatchtypes.ScanInput) (*dispatchtypes.ScanOutcome, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.outcome, nil
}

func (g *gatedDispatcher) ConfirmDelivery(context.Context, dispatchtypes.ConfirmDeliveryInput) (*dispatchdomain.Order, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.outcome.Order.Order, nil
}

type scanResult struct {
	snap *types.SessionSnapshot
	err  error
}

func setupRegistry(t *testing.T, orders ...dispatchdomain.Order) (*Registry, *memory.StationStore, *dispatchmemory.Repository) {
	t.Helper()
	repo := dispatchmemory.NewRepository()
	for i := range orders {
		_, err := repo.Save(context.Background(), &orders[i])
		require.NoError(t, err)
	}
	stations := memory.NewStationStore()
	registry := NewRegistry(dispatchapp.NewService(repo), stations, WithResetDelay(20*time.Millisecond))
	return registry, stations, repo
}

func TestController_ClaimPreviewConfirm(t *testing.T) {
	registry, stations, repo := setupRegistry(t, dispatchdomain.Order{ID: "o-1", OrderNumber: 42, Status: dispatchdomain.StatusPaid})
	ctx := context.Background()
	require.NoError(t, stations.Set(ctx, "term-1", "BARRA"))
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "42"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateAssigned, snap.Session.State)
	assert.Equal(t, dispatchdomain.Station("BARRA"), snap.Station)
	assert.Contains(t, snap.Session.Message, "scan again to deliver")

	snap, err = registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "42"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePreview, snap.Session.State)
	assert.False(t, snap.Conflict)

	snap, err = registry.Confirm(ctx, types.ConfirmInput{TerminalID: "term-1", OperatorID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, snap.Session.State)
	assert.Equal(t, dispatchdomain.StatusServed, snap.Order.Order.Status)

	stored, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "staff-1", stored.ServedBy)

	require.Eventually(t, func() bool {
		current, err := registry.Get(ctx, "term-1")
		return err == nil && current.Session.State == domain.StateIdle
	}, time.Second, 5*time.Millisecond)
}

func TestController_AllStationsPreviewsReadyOrder(t *testing.T) {
	registry, _, _ := setupRegistry(t, dispatchdomain.Order{ID: "o-1", OrderNumber: 7, Status: dispatchdomain.StatusReady, DispatchStation: "COCINA"})
	ctx := context.Background()
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "7"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePreview, snap.Session.State)
	assert.Equal(t, dispatchdomain.AllStations, snap.Station)

	snap, err = registry.Confirm(ctx, types.ConfirmInput{TerminalID: "term-1", OperatorID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, snap.Session.State)
}

func TestController_ConflictShowsExistingAssignment(t *testing.T) {
	registry, stations, _ := setupRegistry(t, dispatchdomain.Order{ID: "o-1", OrderNumber: 9, Status: dispatchdomain.StatusPreparing, DispatchStation: "COCINA"})
	ctx := context.Background()
	require.NoError(t, stations.Set(ctx, "term-1", "BARRA"))
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "9"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePreview, snap.Session.State)
	assert.True(t, snap.Conflict)
	assert.Equal(t, dispatchdomain.Station("COCINA"), snap.Order.Order.DispatchStation)
	assert.Contains(t, snap.Session.Message, "COCINA")
}

func TestController_AlreadyServedEndsInError(t *testing.T) {
	registry, _, _ := setupRegistry(t, dispatchdomain.Order{ID: "o-1", OrderNumber: 3, Status: dispatchdomain.StatusServed})
	ctx := context.Background()
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "3"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, snap.Session.State)
	assert.Equal(t, domain.FailureAlreadyServed, snap.Session.Failure)

	snap, err = registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "404"})
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, domain.StateError, snap.Session.State)

	require.Eventually(t, func() bool {
		current, err := registry.Get(ctx, "term-1")
		return err == nil && current.Session.State == domain.StateIdle
	}, time.Second, 5*time.Millisecond)

	snap, err = registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "404"})
	require.NoError(t, err)
	assert.Equal(t, domain.FailureNotFound, snap.Session.Failure)
}

func TestController_RejectsScanWhileLoading(t *testing.T) {
	dispatcher := newGatedDispatcher(&dispatchtypes.ScanOutcome{
		Action: dispatchtypes.ActionPreview,
		Order:  &dispatchtypes.ResolvedOrder{Order: &dispatchdomain.Order{ID: "o-1"}},
	})
	registry := NewRegistry(dispatcher, memory.NewStationStore())
	ctx := context.Background()
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	done := make(chan scanResult, 1)
	go func() {
		snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "1"})
		done <- scanResult{snap, err}
	}()
	<-dispatcher.entered

	snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "2"})
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, domain.StateLoading, snap.Session.State)

	close(dispatcher.release)
	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, domain.StatePreview, result.snap.Session.State)
}

func TestController_DiscardsLateResponseAfterReset(t *testing.T) {
	dispatcher := newGatedDispatcher(&dispatchtypes.ScanOutcome{
		Action: dispatchtypes.ActionAssigned,
		Order:  &dispatchtypes.ResolvedOrder{Order: &dispatchdomain.Order{ID: "o-1"}},
	})
	registry := NewRegistry(dispatcher, memory.NewStationStore())
	ctx := context.Background()
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	done := make(chan scanResult, 1)
	go func() {
		snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "1"})
		done <- scanResult{snap, err}
	}()
	<-dispatcher.entered

	reset, err := registry.Reset(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, reset.Session.State)

	close(dispatcher.release)
	result := <-done
	require.ErrorIs(t, result.err, domain.ErrStaleAttempt)

	current, err := registry.Get(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, current.Session.State)
	assert.Nil(t, current.Order)
}

func TestController_ReadsStationOnEveryScan(t *testing.T) {
	registry, _, _ := setupRegistry(t,
		dispatchdomain.Order{ID: "o-1", OrderNumber: 1, Status: dispatchdomain.StatusPaid},
		dispatchdomain.Order{ID: "o-2", OrderNumber: 2, Status: dispatchdomain.StatusPaid},
	)
	ctx := context.Background()
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	snap, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePreview, snap.Session.State)
	_, err = registry.Reset(ctx, "term-1")
	require.NoError(t, err)

	station, err := registry.SetStation(ctx, "term-1", "COCINA")
	require.NoError(t, err)
	assert.Equal(t, dispatchdomain.Station("COCINA"), station)

	snap, err = registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "2"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateAssigned, snap.Session.State)
	assert.Equal(t, dispatchdomain.Station("COCINA"), snap.Order.Order.DispatchStation)
}

func TestController_ConfirmRequiresPreview(t *testing.T) {
	registry, _, _ := setupRegistry(t)
	ctx := context.Background()
	_, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1"})
	require.NoError(t, err)

	_, err = registry.Confirm(ctx, types.ConfirmInput{TerminalID: "term-1", OperatorID: "staff-1"})
	require.ErrorIs(t, err, domain.ErrNotPreviewing)
}

func TestRegistry_Lifecycle(t *testing.T) {
	registry, _, _ := setupRegistry(t)
	ctx := context.Background()

	_, err := registry.Scan(ctx, types.ScanInput{TerminalID: "term-1", Code: "1"})
	require.ErrorIs(t, err, ports.ErrSessionNotFound)

	_, err = registry.Open(ctx, types.OpenSessionInput{TerminalID: " "})
	require.ErrorIs(t, err, ErrInvalidInput)

	snap, err := registry.Open(ctx, types.OpenSessionInput{TerminalID: "term-1", StoreID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", snap.Session.StoreID)
	assert.Equal(t, domain.StateIdle, snap.Session.State)

	require.NoError(t, registry.Close(ctx, "term-1"))
	_, err = registry.Get(ctx, "term-1")
	require.ErrorIs(t, err, ports.ErrSessionNotFound)
	require.ErrorIs(t, registry.Close(ctx, "term-1"), ports.ErrSessionNotFound)
}
