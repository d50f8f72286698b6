package application

import (
	"context"
	"errors"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

// OfflineOutcomeFor classifies the result of replaying one offline confirmation.
// Transient errors are not classified here; callers decide whether to retry them.
func OfflineOutcomeFor(err error) types.OfflineOutcome {
	switch {
	case err == nil:
		return types.OfflineDelivered
	case errors.Is(err, ports.ErrAlreadyServed):
		return types.OfflineAlreadyServed
	case errors.Is(err, ports.ErrNotFound):
		return types.OfflineNotFound
	default:
		return types.OfflineFailed
	}
}

// ReplayDelivery confirms one offline delivery and reports its outcome. The error is
// returned only when the outcome is failed.
func ReplayDelivery(ctx context.Context, svc ports.Service, delivery types.OfflineDelivery) (types.OfflineDeliveryResult, error) {
	confirmedAt := delivery.ConfirmedAt
	_, err := svc.ConfirmDelivery(ctx, types.ConfirmDeliveryInput{
		OrderID:     delivery.OrderID,
		OperatorID:  delivery.OperatorID,
		ConfirmedAt: &confirmedAt,
	})
	result := types.OfflineDeliveryResult{OrderID: delivery.OrderID, Outcome: OfflineOutcomeFor(err)}
	if result.Outcome != types.OfflineFailed {
		return result, nil
	}
	result.Message = err.Error()
	return result, err
}
