package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
)

type stationRecord struct {
	TerminalID string    `gorm:"primaryKey;column:terminal_id;type:varchar(64)"`
	Station    string    `gorm:"column:station;type:varchar(64)"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (stationRecord) TableName() string { return "terminal_stations" }

// StationStore persists station selections so they survive terminal restarts.
type StationStore struct {
	db *gorm.DB
}

func NewStationStore(db *gorm.DB) *StationStore {
	return &StationStore{db: db}
}

func (s *StationStore) Get(ctx context.Context, terminalID string) (dispatchdomain.Station, error) {
	if err := s.ensureDB(); err != nil {
		return "", err
	}
	var rec stationRecord
	err := s.db.WithContext(ctx).Where("terminal_id = ?", terminalID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dispatchdomain.AllStations, nil
	}
	if err != nil {
		return "", err
	}
	return dispatchdomain.NormalizeStation(rec.Station), nil
}

func (s *StationStore) Set(ctx context.Context, terminalID string, station dispatchdomain.Station) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	rec := stationRecord{
		TerminalID: terminalID,
		Station:    string(dispatchdomain.NormalizeStation(string(station))),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "terminal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"station", "updated_at"}),
	}).Create(&rec).Error
}

func (s *StationStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres station store not initialized")
	}
	return nil
}

var _ ports.StationStore = (*StationStore)(nil)
