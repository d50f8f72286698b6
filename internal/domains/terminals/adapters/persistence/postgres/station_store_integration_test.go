//go:build integration
// +build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/platform/migrations"
)

func setupTerminalsPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("terminals_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}
	return db, cleanup
}

func TestStationStore_SurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupTerminalsPostgresContainer(t)
	defer cleanup()
	ctx := context.Background()

	station, err := NewStationStore(db).Get(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, dispatchdomain.AllStations, station)

	require.NoError(t, NewStationStore(db).Set(ctx, "term-1", "COCINA"))
	require.NoError(t, NewStationStore(db).Set(ctx, "term-1", "BARRA"))

	// a new store instance stands in for a restarted terminal process
	station, err = NewStationStore(db).Get(ctx, "term-1")
	require.NoError(t, err)
	assert.Equal(t, dispatchdomain.Station("BARRA"), station)
}
