package domain

import "strings"

// Station identifies a physical preparation point such as a bar or a kitchen.
type Station string

// AllStations is the sentinel selection that disables station filtering.
const AllStations Station = "ALL"

// NormalizeStation trims the selection and maps empty input to AllStations.
func NormalizeStation(raw string) Station {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, string(AllStations)) {
		return AllStations
	}
	return Station(value)
}

// Filtering is true when a specific station is selected.
func (s Station) Filtering() bool {
	return s != "" && s != AllStations
}

func (s Station) String() string { return string(s) }
