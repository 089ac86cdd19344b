package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"haultrack/internal/domain/geo"
	"haultrack/internal/general/config"
	"haultrack/internal/general/logger"
	"haultrack/internal/ports"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by Get when no cached position exists for the user.
var ErrCacheMiss = errors.New("rediscache: location not cached")

const (
	locationKeyPrefix = "location:"
	locationTTL       = 5 * time.Minute
)

// LocationCache is a write-through cache of the latest known position per
// user. The durable store remains the source of truth; entries expire so a
// stale cache self-heals.
type LocationCache struct {
	client *redis.Client
}

// Connect builds a redis client from cfg and verifies connectivity.
func Connect(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*LocationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"host": cfg.Redis.Host,
		"port": cfg.Redis.Port,
		"db":   cfg.Redis.DB,
	})

	return &LocationCache{client: client}, nil
}

var _ ports.LocationCache = (*LocationCache)(nil)

// cachedLocation is the JSON value stored under location:<user_id>.
type cachedLocation struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	IsOnline  bool      `json:"is_online"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Put stores the latest position with a TTL.
func (cache *LocationCache) Put(ctx context.Context, loc *geo.CurrentLocation) error {
	payload, err := json.Marshal(cachedLocation{
		UserID:    loc.UserID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		IsOnline:  loc.IsOnline,
		UpdatedAt: loc.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal cached location: %w", err)
	}

	return cache.client.Set(ctx, locationKeyPrefix+loc.UserID, payload, locationTTL).Err()
}

// Get returns the cached position or ErrCacheMiss.
func (cache *LocationCache) Get(ctx context.Context, userID string) (*geo.CurrentLocation, error) {
	raw, err := cache.client.Get(ctx, locationKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var cached cachedLocation
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("unmarshal cached location: %w", err)
	}

	return &geo.CurrentLocation{
		UserID:    cached.UserID,
		Latitude:  cached.Latitude,
		Longitude: cached.Longitude,
		IsOnline:  cached.IsOnline,
		UpdatedAt: cached.UpdatedAt,
	}, nil
}

// Drop removes the cached position (used when a driver goes offline).
func (cache *LocationCache) Drop(ctx context.Context, userID string) error {
	return cache.client.Del(ctx, locationKeyPrefix+userID).Err()
}

// Close releases the underlying redis client.
func (cache *LocationCache) Close() error {
	return cache.client.Close()
}
