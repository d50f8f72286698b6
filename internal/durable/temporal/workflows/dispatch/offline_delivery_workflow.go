package dispatch

import (
	"go.temporal.io/sdk/workflow"

	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/durable/temporal/sequences"
)

const (
	// OfflineDeliverySyncWorkflowName is the public identifier for registering the workflow.
	OfflineDeliverySyncWorkflowName = "dispatch.workflows.OfflineDeliverySync"
	// OfflineDeliverySyncTaskQueue is the queue consumed by the dispatch worker.
	OfflineDeliverySyncTaskQueue = "DISPATCH_OFFLINE_SYNC"
)

// OfflineDeliverySyncWorkflowInput carries one uploaded batch.
type OfflineDeliverySyncWorkflowInput struct {
	Command dispatchtypes.OfflineSyncInput
	TraceID string
}

// OfflineDeliverySyncWorkflow replays a terminal's offline delivery confirmations.
func OfflineDeliverySyncWorkflow(ctx workflow.Context, input OfflineDeliverySyncWorkflowInput) (*dispatchtypes.OfflineSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("OfflineDeliverySyncWorkflow started", withTraceID(input.TraceID, "terminalId", input.Command.TerminalID)...)
	result, err := sequences.RunOfflineDeliverySequence(ctx, input.Command)
	if err != nil {
		logger.Error("OfflineDeliverySyncWorkflow failed", withTraceID(input.TraceID, "terminalId", input.Command.TerminalID, "error", err)...)
		return nil, err
	}
	logger.Info("OfflineDeliverySyncWorkflow completed", withTraceID(input.TraceID, "terminalId", input.Command.TerminalID, "results", len(result.Results))...)
	return result, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
