package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchactivities "github.com/Apurer/order-dispatch/internal/durable/temporal/activities/dispatch"
)

// OfflineDeliveryRetryPolicy mirrors the offline retry policy: 5 attempts, 500ms doubling to 5s.
func OfflineDeliveryRetryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 2.0,
		MaximumInterval:    5 * time.Second,
		MaximumAttempts:    5,
	}
}

// RunOfflineDeliverySequence replays deliveries in upload order. A failing entry is
// reported and does not stop the batch.
func RunOfflineDeliverySequence(ctx workflow.Context, input dispatchtypes.OfflineSyncInput) (*dispatchtypes.OfflineSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("offline delivery sequence started", "terminalId", input.TerminalID, "deliveries", len(input.Deliveries))
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         OfflineDeliveryRetryPolicy(),
	})

	result := &dispatchtypes.OfflineSyncResult{
		TerminalID: input.TerminalID,
		Results:    make([]dispatchtypes.OfflineDeliveryResult, 0, len(input.Deliveries)),
	}
	for _, delivery := range input.Deliveries {
		var entry dispatchtypes.OfflineDeliveryResult
		err := workflow.ExecuteActivity(ctx, dispatchactivities.ConfirmOfflineDeliveryActivityName, delivery).Get(ctx, &entry)
		if err != nil {
			logger.Warn("offline delivery replay failed", "orderId", delivery.OrderID, "error", err)
			entry = dispatchtypes.OfflineDeliveryResult{
				OrderID: delivery.OrderID,
				Outcome: dispatchtypes.OfflineFailed,
				Message: err.Error(),
			}
		}
		result.Results = append(result.Results, entry)
	}
	logger.Info("offline delivery sequence completed", "terminalId", input.TerminalID)
	return result, nil
}
