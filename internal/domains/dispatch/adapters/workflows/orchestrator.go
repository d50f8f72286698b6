package workflows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	dispatchworkflows "github.com/Apurer/order-dispatch/internal/durable/temporal/workflows/dispatch"
)

var (
	_ ports.OfflineSyncOrchestrator = (*TemporalOfflineSync)(nil)
	_ ports.OfflineSyncOrchestrator = (*InlineOfflineSync)(nil)
)

// ErrEmptyBatch is returned for uploads without deliveries.
var ErrEmptyBatch = errors.New("offline sync batch is empty")

// TemporalOfflineSync runs offline replays as durable workflows.
type TemporalOfflineSync struct {
	client    client.Client
	taskQueue string
}

func NewTemporalOfflineSync(c client.Client) *TemporalOfflineSync {
	return &TemporalOfflineSync{client: c, taskQueue: dispatchworkflows.OfflineDeliverySyncTaskQueue}
}

// SyncDeliveries starts the workflow and waits for its result. Re-uploading the same
// batch attaches to the run already in progress instead of replaying twice.
func (o *TemporalOfflineSync) SyncDeliveries(ctx context.Context, input dispatchtypes.OfflineSyncInput) (*dispatchtypes.OfflineSyncResult, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal offline sync not configured")
	}
	if len(input.Deliveries) == 0 {
		return nil, ErrEmptyBatch
	}
	workflowID := buildOfflineSyncWorkflowID(input)
	run, err := o.client.ExecuteWorkflow(
		ctx,
		client.StartWorkflowOptions{ID: workflowID, TaskQueue: o.taskQueue},
		dispatchworkflows.OfflineDeliverySyncWorkflowName,
		dispatchworkflows.OfflineDeliverySyncWorkflowInput{Command: input, TraceID: workflowTraceID(ctx)},
	)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) {
			return nil, err
		}
		run = o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
	}
	var result dispatchtypes.OfflineSyncResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// InlineOfflineSync replays deliveries in-process. The service should carry the offline retry policy.
type InlineOfflineSync struct {
	service ports.Service
}

func NewInlineOfflineSync(service ports.Service) *InlineOfflineSync {
	return &InlineOfflineSync{service: service}
}

func (o *InlineOfflineSync) SyncDeliveries(ctx context.Context, input dispatchtypes.OfflineSyncInput) (*dispatchtypes.OfflineSyncResult, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline offline sync not configured")
	}
	if len(input.Deliveries) == 0 {
		return nil, ErrEmptyBatch
	}
	result := &dispatchtypes.OfflineSyncResult{
		TerminalID: input.TerminalID,
		Results:    make([]dispatchtypes.OfflineDeliveryResult, 0, len(input.Deliveries)),
	}
	for _, delivery := range input.Deliveries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, _ := application.ReplayDelivery(ctx, o.service, delivery)
		result.Results = append(result.Results, entry)
	}
	return result, nil
}

func buildOfflineSyncWorkflowID(input dispatchtypes.OfflineSyncInput) string {
	h := sha256.New()
	for _, d := range input.Deliveries {
		fmt.Fprintf(h, "%s|%s|%d;", d.OrderID, d.OperatorID, d.ConfirmedAt.UnixNano())
	}
	terminal := strings.TrimSpace(input.TerminalID)
	if terminal == "" {
		terminal = "unknown"
	}
	return fmt.Sprintf("offline-sync-%s-%s", terminal, hex.EncodeToString(h.Sum(nil)[:8]))
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return spanCtx.TraceID().String()
}
