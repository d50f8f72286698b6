//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/realtime"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	"github.com/Apurer/order-dispatch/internal/platform/migrations"
	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

func setupDispatchPostgresContainer(t *testing.T) (*gorm.DB, string, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("dispatch_test"),
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

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, dsn, cleanup
}

func saveOrder(t *testing.T, repo *Repository, order domain.Order) *domain.Order {
	t.Helper()
	saved, err := repo.Save(context.Background(), &order)
	require.NoError(t, err)
	return saved
}

func TestRepository_SaveAndFind(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	saved := saveOrder(t, repo, domain.Order{
		ID:          "o-1",
		OrderNumber: 42,
		PickupCode:  "PX-1",
		StoreID:     "s-1",
		Status:      domain.StatusPaid,
		TotalAmount: decimal.RequireFromString("18.40"),
		Items:       []domain.LineItem{{ProductID: "p-1", Name: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("9.20")}},
	})
	assert.Equal(t, "o-1", saved.ID)
	assert.True(t, saved.TotalAmount.Equal(decimal.RequireFromString("18.40")))
	require.Len(t, saved.Items, 1)
	assert.Equal(t, "Latte", saved.Items[0].Name)
	assert.Empty(t, saved.DispatchStation)

	byCode, err := repo.FindByPickupCode(ctx, "PX-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", byCode.ID)

	byNumber, err := repo.FindByOrderNumber(ctx, "s-1", 42)
	require.NoError(t, err)
	assert.Equal(t, "o-1", byNumber.ID)

	_, err = repo.FindByOrderNumber(ctx, "s-2", 42)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_ItemRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	saveOrder(t, repo, domain.Order{ID: "o-1", Status: domain.StatusPaid})

	items, err := repo.ListItems(ctx, "o-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, repo.SaveItems(ctx, "o-1", []domain.LineItem{
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "p-2", Quantity: 3, Notes: "no ice"},
	}))
	items, err = repo.ListItems(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "no ice", items[1].Notes)
}

func TestRepository_ClaimRace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	saveOrder(t, repo, domain.Order{ID: "o-1", Status: domain.StatusPaid})

	stations := []domain.Station{"BARRA", "COCINA", "TERRAZA"}
	errs := make([]error, len(stations))
	var wg sync.WaitGroup
	for i, station := range stations {
		wg.Add(1)
		go func(i int, station domain.Station) {
			defer wg.Done()
			_, errs[i] = repo.Claim(context.Background(), "o-1", station)
		}(i, station)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ports.ErrClaimConflict)
	}
	assert.Equal(t, 1, wins)

	stored, err := repo.FindByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, stored.Status)
	assert.NotEmpty(t, stored.DispatchStation)
}

func TestRepository_ClaimRejections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()
	saveOrder(t, repo, domain.Order{ID: "served", Status: domain.StatusServed})
	saveOrder(t, repo, domain.Order{ID: "cancelled", Status: domain.StatusCancelled})

	_, err := repo.Claim(ctx, "served", "BARRA")
	assert.ErrorIs(t, err, ports.ErrAlreadyServed)
	_, err = repo.Claim(ctx, "cancelled", "BARRA")
	assert.ErrorIs(t, err, ports.ErrOrderClosed)
	_, err = repo.Claim(ctx, "missing", "BARRA")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = repo.Claim(ctx, "served", domain.AllStations)
	assert.ErrorIs(t, err, domain.ErrMissingStation)
}

func TestRepository_ConfirmDeliveryRace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	saveOrder(t, repo, domain.Order{ID: "o-1", Status: domain.StatusReady, DispatchStation: "COCINA"})

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.ConfirmDelivery(context.Background(), "o-1", "staff-1", at)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ports.ErrAlreadyServed)
	}
	assert.Equal(t, 1, successes)

	stored, err := repo.FindByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusServed, stored.Status)
	assert.Equal(t, "staff-1", stored.ServedBy)
	require.NotNil(t, stored.ServedAt)
	assert.True(t, stored.ServedAt.Equal(at))
	assert.Equal(t, domain.Station("COCINA"), stored.DispatchStation)
}

func TestRepository_LockContentionIsClassified(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db, WithLockTimeout(100*time.Millisecond))
	saveOrder(t, repo, domain.Order{ID: "o-1", Status: domain.StatusPaid})

	holder := db.Begin()
	require.NoError(t, holder.Error)
	require.NoError(t, holder.Exec("SELECT id FROM orders WHERE id = ? FOR UPDATE", "o-1").Error)

	_, err := repo.Claim(context.Background(), "o-1", "BARRA")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrLockContention))
	assert.True(t, retry.IsLockNotAvailable(err))

	require.NoError(t, holder.Rollback().Error)

	claimed, err := repo.Claim(context.Background(), "o-1", "BARRA")
	require.NoError(t, err)
	assert.Equal(t, domain.Station("BARRA"), claimed.DispatchStation)
}

func TestCatalog_Names(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	catalog := NewCatalog(db)
	ctx := context.Background()
	require.NoError(t, catalog.SaveProduct(ctx, "p-1", "s-1", "Flat white"))
	require.NoError(t, catalog.SaveInventoryItem(ctx, "inv-1", "s-1", "Bottled water"))

	products, err := catalog.ProductNames(ctx, []string{"p-1", "inv-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"p-1": "Flat white"}, products)

	inventory, err := catalog.InventoryItemNames(ctx, []string{"p-1", "inv-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"inv-1": "Bottled water"}, inventory)
}

func TestRetryMetricsStore_RecordsRetriedInvocations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	store := NewRetryMetricsStore(db)
	ctx := context.Background()

	require.NoError(t, store.RecordRetry(ctx, retry.Report{Operation: "claim_order", Attempts: 1, Outcome: retry.OutcomeSuccess}))
	require.NoError(t, store.RecordRetry(ctx, retry.Report{Operation: "claim_order", Attempts: 3, Outcome: retry.OutcomeSuccess, Duration: 600 * time.Millisecond}))
	require.NoError(t, store.RecordRetry(ctx, retry.Report{Operation: "confirm_delivery", Attempts: 3, Outcome: retry.OutcomeFailed, ErrorCode: "55P03"}))
	require.NoError(t, store.RecordRetry(ctx, retry.Report{Operation: "claim_order", Attempts: 1, Outcome: retry.OutcomeRejected, ErrorCode: "UNKNOWN"}))

	var count int64
	require.NoError(t, db.Model(&retryMetricRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	removed, err := store.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestChangeListener_PublishesUpdatedRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, dsn, cleanup := setupDispatchPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	saveOrder(t, repo, domain.Order{ID: "o-1", Status: domain.StatusPaid})

	hub := realtime.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe, err := hub.Subscribe(ctx, "o-1")
	require.NoError(t, err)
	defer unsubscribe()

	listener := NewChangeListener(dsn, repo, hub, nil)
	go func() { _ = listener.Run(ctx) }()

	require.Eventually(t, func() bool {
		if _, err := repo.Claim(ctx, "o-1", "BARRA"); err != nil && !errors.Is(err, ports.ErrClaimConflict) {
			return false
		}
		select {
		case order := <-updates:
			return order.Status == domain.StatusPreparing && order.DispatchStation == "BARRA"
		case <-time.After(200 * time.Millisecond):
			// the listener may not be subscribed yet; touch the row again
			return db.Exec("UPDATE orders SET updated_at = NOW() WHERE id = ?", "o-1").Error != nil
		}
	}, 10*time.Second, 100*time.Millisecond)
}
