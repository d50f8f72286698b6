package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
)

func TestStationStore_DefaultsToAll(t *testing.T) {
	store := NewStationStore()
	ctx := context.Background()

	station, err := store.Get(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, dispatchdomain.AllStations, station)

	require.NoError(t, store.Set(ctx, "term-1", "BARRA"))
	station, err = store.Get(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, dispatchdomain.Station("BARRA"), station)

	require.NoError(t, store.Set(ctx, "term-1", " all "))
	station, err = store.Get(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, dispatchdomain.AllStations, station)
}
