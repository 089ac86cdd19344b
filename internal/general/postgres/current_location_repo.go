package postgres

import (
	"context"

	"haultrack/internal/domain/geo"
	"haultrack/internal/ports"
)

// CurrentLocationRepo persists the single current-location row per user
// using pgx and plain SQL.
type CurrentLocationRepo struct{}

// NewCurrentLocationRepo constructs a new CurrentLocationRepo.
func NewCurrentLocationRepo() ports.CurrentLocationRepository {
	return &CurrentLocationRepo{}
}

// Upsert creates the row on first write and overwrites lat/lng afterwards.
// The primary key on user_id keeps the at-most-one-row invariant; concurrent
// upserts for different users never contend.
func (repo *CurrentLocationRepo) Upsert(ctx context.Context, loc *geo.CurrentLocation) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// validate domain invariants
	if err := loc.Validate(); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO current_locations (user_id, latitude, longitude, is_online)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET latitude   = EXCLUDED.latitude,
		    longitude  = EXCLUDED.longitude,
		    is_online  = EXCLUDED.is_online,
		    updated_at = now()
		RETURNING created_at, updated_at
	`,
		loc.UserID,
		loc.Latitude,
		loc.Longitude,
		loc.IsOnline,
	).Scan(&loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return err
	}

	return nil
}

// GetByUserID returns the current location row for a user.
func (repo *CurrentLocationRepo) GetByUserID(ctx context.Context, userID string) (*geo.CurrentLocation, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out geo.CurrentLocation

	err = tx.QueryRow(ctx, `
		SELECT user_id, latitude, longitude, is_online, created_at, updated_at
		FROM current_locations
		WHERE user_id = $1
	`, userID).Scan(
		&out.UserID, &out.Latitude, &out.Longitude,
		&out.IsOnline, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// SetOffline flips the online flag without touching the stored position.
// A missing row is not an error: the user never sent a location.
func (repo *CurrentLocationRepo) SetOffline(ctx context.Context, userID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE current_locations
		SET is_online = false, updated_at = now()
		WHERE user_id = $1
	`, userID)
	return err
}
