package ports

import (
	"context"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
)

// OfflineSyncOrchestrator replays delivery confirmations captured while a terminal was offline.
type OfflineSyncOrchestrator interface {
	SyncDeliveries(ctx context.Context, input types.OfflineSyncInput) (*types.OfflineSyncResult, error)
}
