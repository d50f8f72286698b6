package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	dispatchserver "github.com/Apurer/order-dispatch/go"

	dispatchmemory "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/memory"
	dispatchamqp "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/messaging/amqp"
	dispatchobs "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/observability"
	dispatchpostgres "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/persistence/postgres"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/realtime"
	dispatchworkflows "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/workflows"
	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	terminalsmemory "github.com/Apurer/order-dispatch/internal/domains/terminals/adapters/memory"
	terminalspostgres "github.com/Apurer/order-dispatch/internal/domains/terminals/adapters/persistence/postgres"
	terminalsapp "github.com/Apurer/order-dispatch/internal/domains/terminals/application"
	terminalsports "github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
	platformobservability "github.com/Apurer/order-dispatch/internal/platform/observability"
	platformpostgres "github.com/Apurer/order-dispatch/internal/platform/postgres"
	"github.com/Apurer/order-dispatch/internal/platform/rabbitmq"
	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

const serviceName = "dispatch-api"

// Run boots the dispatch HTTP API with observability, repositories, the change feed, and offline sync wired.
func Run(ctx context.Context, cfg Config) error {
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName, platformobservability.WithChangeFeed(cfg.ChangeFeed))
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, cleanupDB := platformpostgres.Open(ctx, cfg.PostgresDSN, logger)
	defer cleanupDB()

	hub := realtime.NewHub()
	defer hub.Close()

	stores := buildStorage(db, cfg)
	orders, cleanupFeed, err := wireChangeFeed(ctx, cfg, db, stores.orders, hub, logger)
	if err != nil {
		return err
	}
	defer cleanupFeed()

	retryOptions := []retry.Option{
		retry.WithClassifier(dispatchapp.IsTransient),
		retry.WithLogger(logger),
		retry.WithMeter(instruments.Meter("internal.platform.retry")),
	}
	if stores.retryMetrics != nil {
		retryOptions = append(retryOptions, retry.WithRecorder(stores.retryMetrics))
	}
	policy := retry.Policy{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay, MaxDelay: cfg.RetryMaxDelay}
	coreService := dispatchapp.NewService(orders,
		dispatchapp.WithCatalog(stores.catalog),
		dispatchapp.WithRetrier(retry.NewExecutor(append(retryOptions, retry.WithPolicy(policy))...)),
	)
	dispatchService := dispatchobs.New(
		coreService,
		dispatchobs.WithLogger(logger),
		dispatchobs.WithTracer(instruments.Tracer("internal.dispatch.application")),
		dispatchobs.WithMeter(instruments.Meter("internal.dispatch.application")),
	)

	var offline dispatchports.OfflineSyncOrchestrator
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, replaying offline deliveries inline", slog.String("error", err.Error()))
		offlineService := dispatchapp.NewService(orders,
			dispatchapp.WithCatalog(stores.catalog),
			dispatchapp.WithRetrier(retry.NewExecutor(append(retryOptions, retry.WithPolicy(retry.OfflineSyncPolicy()))...)),
		)
		offline = dispatchworkflows.NewInlineOfflineSync(offlineService)
	} else {
		defer temporalClient.Close()
		offline = dispatchworkflows.NewTemporalOfflineSync(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	notifier := dispatchapp.NewStatusNotifier(orders, hub, dispatchapp.WithPollInterval(cfg.StatusPollInterval))
	sessions := terminalsapp.NewRegistry(dispatchService, stores.stations, terminalsapp.WithResetDelay(cfg.SessionResetDelay))

	handlers := dispatchserver.ApiHandleFunctions{
		OrderAPI:    dispatchserver.NewOrderAPI(dispatchService, notifier, cfg.CORSAllowedOrigins),
		TerminalAPI: dispatchserver.NewTerminalAPI(sessions, offline),
	}
	router := dispatchserver.NewRouter(handlers,
		otelgin.Middleware(serviceName),
		dispatchserver.CORS(cfg.CORSAllowedOrigins),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatch API listening", slog.String("addr", server.Addr), slog.String("change_feed", cfg.ChangeFeed))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dispatch API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		return server.Shutdown(shutdownCtx)
	}
}

type storage struct {
	orders       dispatchports.OrderRepository
	catalog      dispatchports.Catalog
	stations     terminalsports.StationStore
	retryMetrics retry.Recorder
}

func buildStorage(db *gorm.DB, cfg Config) storage {
	if db == nil {
		return storage{
			orders:   dispatchmemory.NewRepository(),
			catalog:  dispatchmemory.NewCatalog(),
			stations: terminalsmemory.NewStationStore(),
		}
	}
	return storage{
		orders:       dispatchpostgres.NewRepository(db, dispatchpostgres.WithLockTimeout(cfg.LockTimeout)),
		catalog:      dispatchpostgres.NewCatalog(db),
		stations:     terminalspostgres.NewStationStore(db),
		retryMetrics: dispatchpostgres.NewRetryMetricsStore(db),
	}
}

// wireChangeFeed decides how committed claims and deliveries reach the local hub.
func wireChangeFeed(ctx context.Context, cfg Config, db *gorm.DB, orders dispatchports.OrderRepository, hub *realtime.Hub, logger *slog.Logger) (dispatchports.OrderRepository, func(), error) {
	switch cfg.ChangeFeed {
	case ChangeFeedPostgres:
		if db == nil {
			logger.Warn("postgres change feed unavailable without a database, publishing local writes only")
			return realtime.NewPublishingRepository(orders, hub, logger), func() {}, nil
		}
		listener := dispatchpostgres.NewChangeListener(cfg.PostgresDSN, orders, hub, logger)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("postgres change listener stopped", slog.String("error", err.Error()))
			}
		}()
		return orders, func() {}, nil
	case ChangeFeedAMQP:
		broker, err := rabbitmq.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		if err := broker.DeclareFanout(dispatchamqp.Exchange); err != nil {
			broker.Close()
			return nil, nil, fmt.Errorf("declare change exchange: %w", err)
		}
		hostname, _ := os.Hostname()
		consumer := dispatchamqp.NewConsumer(broker, hub, serviceName+"@"+hostname, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("amqp change consumer stopped", slog.String("error", err.Error()))
			}
		}()
		return realtime.NewPublishingRepository(orders, dispatchamqp.NewPublisher(broker), logger), broker.Close, nil
	default:
		return realtime.NewPublishingRepository(orders, hub, logger), func() {}, nil
	}
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-client"),
	})
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(instruments.Logger),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
