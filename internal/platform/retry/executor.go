// Package retry retries state-changing backend calls that fail under transient lock contention.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Policy bounds the number of attempts and the exponential backoff window.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is used for interactive claim and delivery writes.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// OfflineSyncPolicy tolerates the extra latency of replaying offline confirmations.
func OfflineSyncPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Classifier reports whether an error is transient lock contention.
type Classifier func(error) bool

// Outcome is the final status of one invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed means lock contention outlasted the policy or the context ended.
	OutcomeFailed Outcome = "failed"
	// OutcomeRejected means an unclassified error, such as a conditional-write
	// rejection, was returned without retry.
	OutcomeRejected Outcome = "rejected"
)

// Report describes one invocation for telemetry.
type Report struct {
	Operation string
	Attempts  int
	Duration  time.Duration
	Outcome   Outcome
	ErrorCode string
}

// Noteworthy reports whether the invocation retried or gave up on a transient failure.
// First-attempt successes and rejections are not.
func (r Report) Noteworthy() bool {
	return r.Attempts > 1 || r.Outcome == OutcomeFailed
}

// Recorder persists noteworthy reports. Failures are logged and never reach the caller.
type Recorder interface {
	RecordRetry(ctx context.Context, report Report) error
}

// Executor runs an operation with retries on classified lock contention.
type Executor struct {
	policy     Policy
	classifier Classifier
	logger     *slog.Logger
	metrics    executorMetrics
	recorders  []Recorder
	now        func() time.Time
}

type Option func(*Executor)

func WithPolicy(p Policy) Option {
	return func(e *Executor) {
		e.policy = p.normalized()
	}
}

// WithClassifier replaces the default lock-not-available classifier.
func WithClassifier(c Classifier) Option {
	return func(e *Executor) {
		if c != nil {
			e.classifier = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMeter(m metric.Meter) Option {
	return func(e *Executor) {
		e.metrics = newExecutorMetrics(m)
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorders = append(e.recorders, r)
		}
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor builds an executor with DefaultPolicy and IsLockNotAvailable unless overridden.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		policy:     DefaultPolicy(),
		classifier: IsLockNotAvailable,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs fn until it succeeds, fails with an unclassified error, or exhausts the policy.
// Unclassified errors are returned on first occurrence without any delay.
func (e *Executor) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) (Report, error) {
	start := e.now()
	attempts := 0
	op := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !e.classifier(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "lock contention, retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", e.policy.MaxAttempts),
			slog.Duration("backoff", next),
			slog.String("error", err.Error()),
		)
	}
	err := backoff.RetryNotify(op, e.newBackOff(ctx), notify)

	report := Report{
		Operation: operation,
		Attempts:  attempts,
		Duration:  e.now().Sub(start),
		Outcome:   OutcomeSuccess,
	}
	if err != nil {
		report.Outcome = outcomeOf(err, e.classifier)
		report.ErrorCode = ErrorCode(err, e.classifier)
	}
	e.emit(ctx, report, err)
	return report, err
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.policy.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = e.policy.MaxDelay
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(e.policy.MaxAttempts-1)), ctx)
}

// emit is best-effort: nothing here may fail the operation.
func (e *Executor) emit(ctx context.Context, report Report, opErr error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "retry telemetry panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	e.metrics.record(ctx, report)
	attrs := []slog.Attr{
		slog.String("operation", report.Operation),
		slog.Int("attempts", report.Attempts),
		slog.Int64("duration_ms", report.Duration.Milliseconds()),
		slog.String("outcome", string(report.Outcome)),
	}
	if opErr != nil {
		attrs = append(attrs, slog.String("error_code", report.ErrorCode), slog.String("error", opErr.Error()))
	}
	switch {
	case report.Outcome == OutcomeFailed:
		e.logger.LogAttrs(ctx, slog.LevelWarn, "retried operation failed", attrs...)
	case report.Attempts > 1:
		e.logger.LogAttrs(ctx, slog.LevelInfo, "retried operation completed", attrs...)
	}
	if !report.Noteworthy() {
		return
	}
	recordCtx := context.WithoutCancel(ctx)
	for _, r := range e.recorders {
		e.record(recordCtx, r, report)
	}
}

func (e *Executor) record(ctx context.Context, r Recorder, report Report) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "retry recorder panicked", slog.String("panic", fmt.Sprint(rec)))
		}
	}()
	if err := r.RecordRetry(ctx, report); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelDebug, "failed to record retry metric",
			slog.String("operation", report.Operation), slog.String("error", err.Error()))
	}
}

func outcomeOf(err error, classifier Classifier) Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeFailed
	}
	if classifier != nil && classifier(err) {
		return OutcomeFailed
	}
	return OutcomeRejected
}

// lockNotAvailable is the PostgreSQL SQLSTATE for lock_not_available.
const lockNotAvailable = "55P03"

// IsLockNotAvailable recognises PostgreSQL lock timeouts and NOWAIT failures.
func IsLockNotAvailable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "lock_timeout") || strings.Contains(msg, "lock not available")
}

// ErrorCode condenses an error into a short code for telemetry.
func ErrorCode(err error, classifier Classifier) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code != "" {
		return pgErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CONTEXT_DONE"
	}
	if classifier != nil && classifier(err) {
		return "LOCK_TIMEOUT"
	}
	return "UNKNOWN"
}

type executorMetrics struct {
	attempts    metric.Int64Histogram
	durationMs  metric.Float64Histogram
	invocations metric.Int64Counter
}

func newExecutorMetrics(m metric.Meter) executorMetrics {
	if m == nil {
		return executorMetrics{}
	}
	attempts, _ := m.Int64Histogram("dispatch.retry.attempts", metric.WithDescription("Attempts per retried invocation"))
	durationMs, _ := m.Float64Histogram("dispatch.retry.duration_ms", metric.WithDescription("Total duration per invocation"), metric.WithUnit("ms"))
	invocations, _ := m.Int64Counter("dispatch.retry.invocations", metric.WithDescription("Invocations by final outcome"))
	return executorMetrics{attempts: attempts, durationMs: durationMs, invocations: invocations}
}

func (m executorMetrics) record(ctx context.Context, report Report) {
	attrs := metric.WithAttributes(
		attribute.String("operation", report.Operation),
		attribute.String("outcome", string(report.Outcome)),
	)
	if m.attempts != nil {
		m.attempts.Record(ctx, int64(report.Attempts), attrs)
	}
	if m.durationMs != nil {
		m.durationMs.Record(ctx, float64(report.Duration.Microseconds())/1000, attrs)
	}
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, attrs)
	}
}
