package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchtypes "github.com/Apurer/order-dispatch/internal/domains/dispatch/application/types"
	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
)

const tracerName = "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/observability/service"

// Service decorates the dispatch service with tracing, logging, and metrics.
type Service struct {
	inner   dispatchports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core dispatch service.
func New(inner dispatchports.Service, opts ...Option) dispatchports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) Resolve(ctx context.Context, input dispatchtypes.ResolveInput) (*dispatchtypes.ResolvedOrder, error) {
	ctx, span := s.tracer.Start(ctx, "DispatchService.Resolve", trace.WithAttributes(attribute.String("store.id", input.StoreID)))
	defer span.End()

	result, err := s.inner.Resolve(ctx, input)
	if err != nil {
		if errors.Is(err, dispatchports.ErrAlreadyServed) || errors.Is(err, dispatchports.ErrNotFound) {
			span.SetAttributes(attribute.String("resolve.rejection", err.Error()))
			s.logInfo(ctx, "code resolution rejected", slog.String("reason", err.Error()))
			return result, err
		}
		return result, s.handleError(ctx, span, err, "failed to resolve code")
	}
	span.SetAttributes(orderAttributes(result.Order)...)
	span.SetAttributes(attribute.String("code.kind", result.Code.Kind.String()), attribute.Bool("names.degraded", result.NamesDegraded))
	return result, nil
}

func (s *Service) Scan(ctx context.Context, input dispatchtypes.ScanInput) (*dispatchtypes.ScanOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "DispatchService.Scan", trace.WithAttributes(
		attribute.String("station", string(input.Station)),
		attribute.String("store.id", input.StoreID),
	))
	defer span.End()

	s.logInfo(ctx, "processing scan", slog.String("station", string(input.Station)))
	outcome, err := s.inner.Scan(ctx, input)
	if err != nil {
		s.metrics.recordScan(ctx, scanResult(err))
		if isBusinessRejection(err) {
			span.SetAttributes(attribute.String("scan.rejection", err.Error()))
			s.logInfo(ctx, "scan rejected", slog.String("station", string(input.Station)), slog.String("reason", err.Error()))
			return nil, err
		}
		return nil, s.handleError(ctx, span, err, "failed to process scan", slog.String("station", string(input.Station)))
	}
	span.SetAttributes(orderAttributes(outcome.Order.Order)...)
	span.SetAttributes(attribute.String("scan.action", string(outcome.Action)), attribute.Bool("scan.conflict", outcome.Conflict))
	switch {
	case outcome.Action == dispatchtypes.ActionAssigned:
		s.metrics.recordClaim(ctx, input.Station)
	case outcome.Conflict:
		s.metrics.recordConflict(ctx, input.Station)
	}
	s.metrics.recordScan(ctx, string(outcome.Action))
	s.logInfo(ctx, "scan processed",
		slog.String("order.id", outcome.Order.Order.ID),
		slog.String("action", string(outcome.Action)),
		slog.Bool("conflict", outcome.Conflict),
		slog.String("dispatch_station", string(outcome.Order.Order.DispatchStation)),
	)
	return outcome, nil
}

func (s *Service) ConfirmDelivery(ctx context.Context, input dispatchtypes.ConfirmDeliveryInput) (*dispatchdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "DispatchService.ConfirmDelivery", trace.WithAttributes(
		attribute.String("order.id", input.OrderID),
		attribute.String("operator.id", input.OperatorID),
	))
	defer span.End()

	s.logInfo(ctx, "confirming delivery", slog.String("order.id", input.OrderID), slog.String("operator.id", input.OperatorID))
	result, err := s.inner.ConfirmDelivery(ctx, input)
	if err != nil {
		if isBusinessRejection(err) {
			span.SetAttributes(attribute.String("delivery.rejection", err.Error()))
			s.logInfo(ctx, "delivery rejected", slog.String("order.id", input.OrderID), slog.String("reason", err.Error()))
			return nil, err
		}
		return nil, s.handleError(ctx, span, err, "failed to confirm delivery", slog.String("order.id", input.OrderID))
	}
	s.metrics.recordDelivery(ctx, result.DispatchStation)
	s.logInfo(ctx, "delivery confirmed", slog.String("order.id", result.ID), slog.String("dispatch_station", string(result.DispatchStation)))
	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*dispatchdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "DispatchService.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	result, err := s.inner.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, dispatchports.ErrNotFound) {
			return nil, err
		}
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", orderID))
	}
	span.SetAttributes(orderAttributes(result)...)
	return result, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

// isBusinessRejection separates expected protocol outcomes and operator input from faults.
func isBusinessRejection(err error) bool {
	return errors.Is(err, dispatchapp.ErrInvalidInput) ||
		errors.Is(err, dispatchports.ErrNotFound) ||
		errors.Is(err, dispatchports.ErrAlreadyServed) ||
		errors.Is(err, dispatchports.ErrOrderClosed) ||
		errors.Is(err, dispatchports.ErrStoreMismatch)
}

func scanResult(err error) string {
	switch {
	case errors.Is(err, dispatchports.ErrNotFound):
		return "not_found"
	case errors.Is(err, dispatchports.ErrAlreadyServed):
		return "already_served"
	case errors.Is(err, dispatchports.ErrOrderClosed):
		return "closed"
	case errors.Is(err, dispatchports.ErrStoreMismatch):
		return "store_mismatch"
	case errors.Is(err, dispatchports.ErrLockContention):
		return "lock_contention"
	case errors.Is(err, dispatchapp.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func orderAttributes(order *dispatchdomain.Order) []attribute.KeyValue {
	if order == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.Int64("order.number", order.OrderNumber),
		attribute.String("order.status", string(order.Status)),
		attribute.String("order.dispatch_station", string(order.DispatchStation)),
	}
}

type serviceMetrics struct {
	scans      metric.Int64Counter
	claims     metric.Int64Counter
	conflicts  metric.Int64Counter
	deliveries metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	scans, _ := m.Int64Counter("dispatch.service.scans", metric.WithDescription("Scans by outcome"))
	claims, _ := m.Int64Counter("dispatch.service.claims", metric.WithDescription("Successful station claims"))
	conflicts, _ := m.Int64Counter("dispatch.service.claim_conflicts", metric.WithDescription("Claims lost to another station"))
	deliveries, _ := m.Int64Counter("dispatch.service.deliveries", metric.WithDescription("Confirmed deliveries"))
	return serviceMetrics{scans: scans, claims: claims, conflicts: conflicts, deliveries: deliveries}
}

func (m serviceMetrics) recordScan(ctx context.Context, outcome string) {
	if m.scans != nil {
		m.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m serviceMetrics) recordClaim(ctx context.Context, station dispatchdomain.Station) {
	if m.claims != nil {
		m.claims.Add(ctx, 1, metric.WithAttributes(attribute.String("station", string(station))))
	}
}

func (m serviceMetrics) recordConflict(ctx context.Context, station dispatchdomain.Station) {
	if m.conflicts != nil {
		m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("station", string(station))))
	}
}

func (m serviceMetrics) recordDelivery(ctx context.Context, station dispatchdomain.Station) {
	if m.deliveries != nil {
		m.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("station", string(station))))
	}
}

var _ dispatchports.Service = (*Service)(nil)
