package ports

import (
	"context"

	"haultrack/internal/domain/geo"
	"haultrack/internal/domain/user"
)

// Identity is a resolved user account backing a connection. It is resolved
// once at handshake time and immutable for the connection's lifetime.
type Identity struct {
	UserID string
	Email  string
	Role   user.Role
}

// TokenAuthenticator resolves a bearer credential to an identity.
// Resolve returns nil (anonymous) on a missing token, decode failure, or
// unknown subject. It never surfaces an error to the connection gate.
type TokenAuthenticator interface {
	Resolve(ctx context.Context, token string) *Identity
}

// LocationStore is the persistence sink consumed by the session handler.
type LocationStore interface {
	// UpsertCurrentLocation creates or overwrites the single current-location
	// row for the user and bumps its last-updated timestamp.
	UpsertCurrentLocation(ctx context.Context, userID string, latitude, longitude float64) error

	// GetCurrent returns the latest known position for the user.
	GetCurrent(ctx context.Context, userID string) (*geo.CurrentLocation, error)

	// MarkOffline is a best-effort offline flip invoked on teardown; callers
	// log and ignore the returned error.
	MarkOffline(ctx context.Context, userID string) error
}

// EventPublisher publishes messages to a broker exchange.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}
