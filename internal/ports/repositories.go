package ports

import (
	"context"

	"haultrack/internal/domain/geo"
	"haultrack/internal/domain/user"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the read side of user data the tracking feed needs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// CurrentLocationRepository defines the methods for the single
// current-location row per user. Upsert keeps the at-most-one-row invariant.
type CurrentLocationRepository interface {
	Upsert(ctx context.Context, loc *geo.CurrentLocation) error
	GetByUserID(ctx context.Context, userID string) (*geo.CurrentLocation, error)
	SetOffline(ctx context.Context, userID string) error
}

// LocationHistoryRepository defines the methods for archiving location history data.
type LocationHistoryRepository interface {
	Archive(ctx context.Context, record *geo.LocationHistory) error
}

// LocationCache caches the latest known position per user for fast reads.
type LocationCache interface {
	Put(ctx context.Context, loc *geo.CurrentLocation) error
	Get(ctx context.Context, userID string) (*geo.CurrentLocation, error)
	Drop(ctx context.Context, userID string) error
}
