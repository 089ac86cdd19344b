package service

import (
	"haultrack/internal/general/logger"
	"haultrack/internal/ports"
)

// trackingService holds all dependencies required by the tracking feed's
// persistence side.
type trackingService struct {
	logger     *logger.Logger
	uow        ports.UnitOfWork
	users      ports.UserRepository
	locations  ports.CurrentLocationRepository
	locHistory ports.LocationHistoryRepository
	cache      ports.LocationCache // nil disables the read cache
}

// NewTrackingService constructs the location store with required dependencies.
func NewTrackingService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	users ports.UserRepository,
	locations ports.CurrentLocationRepository,
	locHistory ports.LocationHistoryRepository,
	cache ports.LocationCache,
) ports.LocationStore {
	return &trackingService{
		logger:     logger,
		uow:        uow,
		users:      users,
		locations:  locations,
		locHistory: locHistory,
		cache:      cache,
	}
}
