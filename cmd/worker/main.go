package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	dispatchmemory "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/memory"
	dispatchamqp "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/messaging/amqp"
	dispatchobs "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/observability"
	dispatchpostgres "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/persistence/postgres"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/realtime"
	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	deliveryactivities "github.com/Apurer/order-dispatch/internal/durable/temporal/activities/dispatch"
	deliveryworkflows "github.com/Apurer/order-dispatch/internal/durable/temporal/workflows/dispatch"
	platformobservability "github.com/Apurer/order-dispatch/internal/platform/observability"
	platformpostgres "github.com/Apurer/order-dispatch/internal/platform/postgres"
	"github.com/Apurer/order-dispatch/internal/platform/rabbitmq"
	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	const serviceName = "dispatch-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName,
		platformobservability.WithTaskQueue(deliveryworkflows.OfflineDeliverySyncTaskQueue),
		platformobservability.WithChangeFeed(strings.ToLower(envOrDefault("CHANGE_FEED", "memory"))),
	)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	db, cleanupDB := platformpostgres.Open(ctx, os.Getenv("POSTGRES_DSN"), logger)
	defer cleanupDB()

	var orders dispatchports.OrderRepository = dispatchmemory.NewRepository()
	if db != nil {
		orders = dispatchpostgres.NewRepository(db)
		logger.Info("worker order repository configured with postgres")
	} else {
		logger.Warn("worker running with in-memory orders; replays will not reach API processes")
	}
	if strings.EqualFold(os.Getenv("CHANGE_FEED"), "amqp") {
		broker, err := rabbitmq.Dial(os.Getenv("AMQP_URL"))
		if err != nil {
			logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer broker.Close()
		if err := broker.DeclareFanout(dispatchamqp.Exchange); err != nil {
			logger.Error("failed to declare change exchange", slog.String("error", err.Error()))
			os.Exit(1)
		}
		orders = realtime.NewPublishingRepository(orders, dispatchamqp.NewPublisher(broker), logger)
	}

	// the activity retry policy owns backoff, so each activity attempt writes once
	singleAttempt := retry.NewExecutor(
		retry.WithPolicy(retry.Policy{MaxAttempts: 1}),
		retry.WithClassifier(dispatchapp.IsTransient),
		retry.WithLogger(logger),
		retry.WithMeter(instruments.Meter("internal.platform.retry")),
	)
	dispatchService := dispatchobs.New(
		dispatchapp.NewService(orders, dispatchapp.WithRetrier(singleAttempt)),
		dispatchobs.WithLogger(logger),
		dispatchobs.WithTracer(instruments.Tracer("internal.dispatch.application")),
		dispatchobs.WithMeter(instruments.Meter("internal.dispatch.application")),
	)
	activities := deliveryactivities.NewActivities(dispatchService)

	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")})
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, deliveryworkflows.OfflineDeliverySyncTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(deliveryworkflows.OfflineDeliverySyncWorkflow, workflow.RegisterOptions{Name: deliveryworkflows.OfflineDeliverySyncWorkflowName})
	w.RegisterActivityWithOptions(activities.ConfirmOfflineDelivery, activity.RegisterOptions{Name: deliveryactivities.ConfirmOfflineDeliveryActivityName})

	logger.Info("worker listening", slog.String("taskQueue", deliveryworkflows.OfflineDeliverySyncTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
