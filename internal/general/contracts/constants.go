package contracts

// Exchanges
const (
	ExchangeLocationFanout = "location_fanout"
)

// Queues
const (
	QueueLocationUpdatesDispatch = "location_updates_dispatch"
)

// WebSocket close codes (application-level).
const (
	// CloseUnauthenticated is sent when the handshake carries no resolvable
	// identity; the connection never reaches the tracking group.
	CloseUnauthenticated = 4001
)

// WebSocket message type tags.
const (
	TypeConnectionEstablished = "connection_established"
	TypeInitializeLocation    = "initialize_location"
	TypeLiveTracking          = "live_tracking"
	TypeLocationUpdate        = "location_update"
)

// GroupKeyPrefix namespaces per-driver broadcast groups.
const GroupKeyPrefix = "driver_"

// DriverGroupKey returns the broadcast group key for a driver identity.
func DriverGroupKey(userID string) string {
	return GroupKeyPrefix + userID
}
