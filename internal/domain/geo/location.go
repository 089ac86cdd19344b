package geo

import (
	"errors"
	"math"
	"strings"
	"time"
)

// CurrentLocation is the domain entity corresponding to the `current_locations`
// table. Invariant: at most one row per user; writes are upserts, never
// duplicate inserts. Deletion is an account-lifecycle concern and never happens
// from the tracking feed.
type CurrentLocation struct {
	UserID    string
	Latitude  float64
	Longitude float64
	IsOnline  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrEmptyUserID      = errors.New("user_id cannot be empty")
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrBadTimestamps    = errors.New("updated_at cannot be before created_at")
)

// NewCurrentLocation constructs a CurrentLocation with IsOnline=true.
func NewCurrentLocation(userID string, latitude, longitude float64) (*CurrentLocation, error) {
	now := time.Now().UTC()
	loc := &CurrentLocation{
		UserID:    strings.TrimSpace(userID),
		Latitude:  latitude,
		Longitude: longitude,
		IsOnline:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	return loc, nil
}

// Validate checks invariants of the CurrentLocation entity.
func (loc *CurrentLocation) Validate() error {
	if strings.TrimSpace(loc.UserID) == "" {
		return ErrEmptyUserID
	}
	if err := ValidateCoordinates(loc.Latitude, loc.Longitude); err != nil {
		return err
	}
	if !loc.CreatedAt.IsZero() && !loc.UpdatedAt.IsZero() && loc.UpdatedAt.Before(loc.CreatedAt) {
		return ErrBadTimestamps
	}
	return nil
}

// UpdatePosition replaces lat/lng with range checks. Updates UpdatedAt timestamp.
func (loc *CurrentLocation) UpdatePosition(latitude, longitude float64) error {
	if err := ValidateCoordinates(latitude, longitude); err != nil {
		return err
	}
	loc.Latitude = latitude
	loc.Longitude = longitude
	loc.touch()
	return nil
}

// MarkOnline toggles the online flag. Updates UpdatedAt timestamp.
func (loc *CurrentLocation) MarkOnline(online bool) {
	loc.IsOnline = online
	loc.touch()
}

// touch sets UpdatedAt to now (UTC).
func (loc *CurrentLocation) touch() {
	loc.UpdatedAt = time.Now().UTC()
}

// ValidateCoordinates range-checks a latitude/longitude pair.
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 || math.IsNaN(latitude) {
		return ErrInvalidLatitude
	}
	if longitude < -180 || longitude > 180 || math.IsNaN(longitude) {
		return ErrInvalidLongitude
	}
	return nil
}
