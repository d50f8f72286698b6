package memory

import (
	"context"
	"sync"

	dispatchdomain "github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
)

// StationStore keeps station selections in process memory.
type StationStore struct {
	mu       sync.RWMutex
	stations map[string]dispatchdomain.Station
}

func NewStationStore() *StationStore {
	return &StationStore{stations: make(map[string]dispatchdomain.Station)}
}

func (s *StationStore) Get(_ context.Context, terminalID string) (dispatchdomain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if station, ok := s.stations[terminalID]; ok {
		return station, nil
	}
	return dispatchdomain.AllStations, nil
}

func (s *StationStore) Set(_ context.Context, terminalID string, station dispatchdomain.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[terminalID] = dispatchdomain.NormalizeStation(string(station))
	return nil
}

var _ ports.StationStore = (*StationStore)(nil)
