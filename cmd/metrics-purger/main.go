package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dispatchpostgres "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/persistence/postgres"
	platformpostgres "github.com/Apurer/order-dispatch/internal/platform/postgres"
)

const defaultRetentionDays = 30

func main() {
	_ = godotenv.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.Open(ctx, os.Getenv("POSTGRES_DSN"), logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot purge retry metrics")
	}

	retention := retentionFromEnv()
	cutoff := time.Now().UTC().Add(-retention)
	purged, err := dispatchpostgres.NewRetryMetricsStore(db).PurgeOlderThan(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to purge retry metrics: %v", err)
	}
	logger.Info("retry metrics purge completed", slog.Int64("purged", purged), slog.Time("cutoff", cutoff))
}

func retentionFromEnv() time.Duration {
	days := defaultRetentionDays
	if raw := strings.TrimSpace(os.Getenv("RETRY_METRICS_RETENTION_DAYS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	return time.Duration(days) * 24 * time.Hour
}
