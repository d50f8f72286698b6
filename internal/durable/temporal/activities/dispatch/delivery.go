package dispatch

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

const (
	// ConfirmOfflineDeliveryActivityName replays one delivery confirmation captured offline.
	ConfirmOfflineDeliveryActivityName = "dispatch.activities.ConfirmOfflineDelivery"
	// DeliveryFailedErrorType marks a replay that must not be retried.
	DeliveryFailedErrorType = "DeliveryFailed"
)

// Activities groups activities that operate on the dispatch bounded context.
type Activities struct {
	service dispatchports.Service
}

// NewActivities wires the dispatch service. The service should retry only once per attempt;
// the activity retry policy owns the backoff.
func NewActivities(service dispatchports.Service) *Activities {
	return &Activities{service: service}
}

// ConfirmOfflineDelivery returns business outcomes as results. Lock contention is returned
// as a retryable error; anything else fails the activity without retry.
func (a *Activities) ConfirmOfflineDelivery(ctx context.Context, delivery dispatchtypes.OfflineDelivery) (*dispatchtypes.OfflineDeliveryResult, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("offline delivery activity not initialized", "orderId", delivery.OrderID)
		return nil, errors.New("offline delivery activity not initialized")
	}
	logger.Info("ConfirmOfflineDelivery activity started", "orderId", delivery.OrderID, "attempt", activity.GetInfo(ctx).Attempt)
	result, err := application.ReplayDelivery(ctx, a.service, delivery)
	if err != nil {
		if application.IsTransient(err) {
			logger.Warn("ConfirmOfflineDelivery hit lock contention", "orderId", delivery.OrderID, "error", err)
			return nil, err
		}
		logger.Error("ConfirmOfflineDelivery failed", "orderId", delivery.OrderID, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), DeliveryFailedErrorType, err)
	}
	logger.Info("ConfirmOfflineDelivery activity completed", "orderId", delivery.OrderID, "outcome", string(result.Outcome))
	return &result, nil
}
