package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

var _ retry.Recorder = (*RetryMetricsStore)(nil)

type retryMetricRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	RPCName     string    `gorm:"column:rpc_name;type:varchar(64);index"`
	Attempts    int       `gorm:"column:attempts"`
	FinalStatus string    `gorm:"column:final_status;type:varchar(16)"`
	DurationMs  int64     `gorm:"column:duration_ms"`
	ErrorCode   string    `gorm:"column:error_code;type:varchar(32)"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
}

func (retryMetricRecord) TableName() string { return "retry_metrics" }

// RetryMetricsStore keeps a row for every invocation that retried or gave up on lock contention.
type RetryMetricsStore struct {
	db *gorm.DB
}

func NewRetryMetricsStore(db *gorm.DB) *RetryMetricsStore {
	return &RetryMetricsStore{db: db}
}

// RecordRetry keeps only noteworthy reports; first-attempt successes and rejections are skipped.
func (s *RetryMetricsStore) RecordRetry(ctx context.Context, report retry.Report) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if !report.Noteworthy() {
		return nil
	}
	rec := retryMetricRecord{
		RPCName:     report.Operation,
		Attempts:    report.Attempts,
		FinalStatus: string(report.Outcome),
		DurationMs:  report.Duration.Milliseconds(),
		ErrorCode:   report.ErrorCode,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// PurgeOlderThan deletes rows created before cutoff and returns how many were removed.
func (s *RetryMetricsStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&retryMetricRecord{})
	return result.RowsAffected, result.Error
}

func (s *RetryMetricsStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres retry metrics store not configured")
	}
	return nil
}
