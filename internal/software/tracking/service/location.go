package service

import (
	"context"
	"errors"
	"time"

	"haultrack/internal/domain/geo"
)

// UpsertCurrentLocation overwrites the single current-location row for the
// user and archives a LocationHistory record, both in one transaction. The
// write-through cache update is best-effort: the durable store is the source
// of truth, so a cache failure never fails the operation.
func (service *trackingService) UpsertCurrentLocation(ctx context.Context, userID string, latitude, longitude float64) error {
	loc, err := geo.NewCurrentLocation(userID, latitude, longitude)
	if err != nil {
		return err
	}

	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.locations.Upsert(ctx, loc); err != nil {
			return err
		}

		record, err := geo.NewLocationHistory(userID, latitude, longitude, time.Now().UTC())
		if err != nil {
			return err
		}
		return service.locHistory.Archive(ctx, record)
	})
	if err != nil {
		service.logger.Error(ctx, "location_upsert_failed", "Failed to persist location", err, map[string]any{
			"user_id": userID,
			"lat":     latitude,
			"lng":     longitude,
		})
		return err
	}

	if service.cache != nil {
		if err := service.cache.Put(ctx, loc); err != nil {
			service.logger.Error(ctx, "location_cache_put_failed", "Failed to refresh location cache", err, map[string]any{
				"user_id": userID,
			})
		}
	}

	service.logger.Info(ctx, "location_updated", "Location persisted", map[string]any{
		"user_id":    userID,
		"lat":        latitude,
		"lng":        longitude,
		"updated_at": loc.UpdatedAt,
	})

	return nil
}

// GetCurrent returns the latest known position, serving from the cache when
// possible and falling back to the durable store on a miss. A successful
// store read refills the cache.
func (service *trackingService) GetCurrent(ctx context.Context, userID string) (*geo.CurrentLocation, error) {
	if service.cache != nil {
		loc, err := service.cache.Get(ctx, userID)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, context.Canceled) {
			service.logger.Debug(ctx, "location_cache_miss", "Serving location from store", map[string]any{
				"user_id": userID,
			})
		}
	}

	var loc *geo.CurrentLocation
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		loc, err = service.locations.GetByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if service.cache != nil {
		if err := service.cache.Put(ctx, loc); err != nil {
			service.logger.Error(ctx, "location_cache_put_failed", "Failed to refill location cache", err, map[string]any{
				"user_id": userID,
			})
		}
	}

	return loc, nil
}

// MarkOffline flips the is_online flag and drops the cached position. Both
// steps are best-effort teardown hygiene; a missing row is not an error.
func (service *trackingService) MarkOffline(ctx context.Context, userID string) error {
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		return service.locations.SetOffline(ctx, userID)
	})

	if service.cache != nil {
		if dropErr := service.cache.Drop(ctx, userID); dropErr != nil {
			service.logger.Error(ctx, "location_cache_drop_failed", "Failed to drop cached location", dropErr, map[string]any{
				"user_id": userID,
			})
		}
	}

	if err != nil {
		return err
	}

	service.logger.Info(ctx, "driver_offline", "Driver marked offline", map[string]any{
		"user_id": userID,
	})

	return nil
}
