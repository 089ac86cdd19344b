package geo

import (
	"errors"
	"strings"
	"time"
)

// ID is a type alias for ID of location history (UUIDs in DB).
type ID string

// LocationHistory is the domain entity corresponding to the `location_history`
// table. Each accepted location write appends one row; only the latest value
// survives in the current_locations table.
type LocationHistory struct {
	ID         ID
	UserID     string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

var (
	ErrMissingUserID      = errors.New("user ID is missing")
	ErrRecordedAtZeroTime = errors.New("recorded_at must be a valid timestamp")
)

// NewLocationHistory constructs a new LocationHistory record.
func NewLocationHistory(userID string, latitude, longitude float64, recordedAt time.Time) (*LocationHistory, error) {
	record := &LocationHistory{
		UserID:     strings.TrimSpace(userID),
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: recordedAt,
	}

	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// Validate checks invariants of the LocationHistory entity.
func (record LocationHistory) Validate() error {
	if record.UserID == "" {
		return ErrMissingUserID
	}
	if err := ValidateCoordinates(record.Latitude, record.Longitude); err != nil {
		return err
	}
	if record.RecordedAt.IsZero() {
		return ErrRecordedAtZeroTime
	}
	return nil
}
