package postgres

import (
	"context"

	"haultrack/internal/domain/geo"
	"haultrack/internal/ports"
)

// LocationHistoryRepo persists location history rows using pgx and plain SQL.
type LocationHistoryRepo struct{}

// NewLocationHistoryRepo constructs a new LocationHistoryRepo.
func NewLocationHistoryRepo() ports.LocationHistoryRepository {
	return &LocationHistoryRepo{}
}

// Archive inserts a single location_history record.
func (repo *LocationHistoryRepo) Archive(ctx context.Context, record *geo.LocationHistory) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// validate domain invariants
	if err := record.Validate(); err != nil {
		return err
	}

	// insert a new entry
	var insertedID string
	err = tx.QueryRow(ctx, `
		INSERT INTO location_history (user_id, latitude, longitude, recorded_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING id
	`,
		record.UserID,
		record.Latitude,
		record.Longitude,
		record.RecordedAt,
	).Scan(&insertedID)
	if err != nil {
		return err
	}

	record.ID = geo.ID(insertedID)

	return nil
}
