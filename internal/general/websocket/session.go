package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"haultrack/internal/general/contracts"
	"haultrack/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	readIdleTimeout = 60 * time.Second
	pingInterval    = 30 * time.Second
	ctrlTimeout     = 5 * time.Second
)

// sessionState tracks the connection life-cycle.
type sessionState int

const (
	statePending sessionState = iota // handshake in progress
	stateActive                      // joined group, serving messages
	stateClosed                      // terminal
)

// messageKind is the closed set of recognized inbound message types.
type messageKind int

const (
	kindUnknown messageKind = iota
	kindInitializeLocation
	kindLiveTracking
)

func parseKind(s string) messageKind {
	switch s {
	case contracts.TypeInitializeLocation:
		return kindInitializeLocation
	case contracts.TypeLiveTracking:
		return kindLiveTracking
	default:
		return kindUnknown
	}
}

// Session owns the life-cycle of one accepted tracking connection: group
// membership, the serialized message loop, and idempotent teardown.
//
// Inbound messages are processed strictly one at a time in arrival order;
// the loop never starts message n+1 before the store write and broadcast of
// message n finished. Loops of different connections run concurrently.
type Session struct {
	ts       *TrackingSocket
	identity *ports.Identity
	groupKey string
	member   *Member

	state     sessionState
	closeOnce sync.Once
}

func newSession(ts *TrackingSocket, identity *ports.Identity, groupKey string, member *Member) *Session {
	return &Session{
		ts:       ts,
		identity: identity,
		groupKey: groupKey,
		member:   member,
		state:    statePending,
	}
}

// activate transitions PENDING -> ACTIVE: join the group, then send exactly
// one acknowledgement to the new connection.
func (s *Session) activate(ctx context.Context) error {
	s.ts.registry.Join(s.groupKey, s.member)
	s.state = stateActive

	return s.member.writeJSON(contracts.ConnectionEstablished{
		Type:    contracts.TypeConnectionEstablished,
		Message: "Connected. Please send your location with type='initialize_location'.",
		UserID:  s.identity.UserID,
		Email:   s.identity.Email,
	})
}

// run drains the connection until it closes, then tears the session down.
func (s *Session) run(ctx context.Context) {
	defer s.teardown(ctx)

	for {
		_ = s.member.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_, payload, err := s.member.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.ts.logger.Error(ctx, "ws_unexpected_close", "Tracking connection closed unexpectedly", err,
					map[string]any{"user_id": s.identity.UserID})
			} else {
				s.ts.logger.Info(ctx, "ws_connection_closed", "Tracking connection closed",
					map[string]any{"user_id": s.identity.UserID})
			}
			return
		}

		s.handleMessage(ctx, payload)
	}
}

// handleMessage implements the ACTIVE -> ACTIVE transition. Protocol errors
// are reported to the sender and never close the connection.
func (s *Session) handleMessage(ctx context.Context, payload []byte) {
	var msg contracts.ClientLocationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		_ = s.member.writeJSON(contracts.ErrorReply{Error: "Invalid JSON"})
		return
	}

	switch parseKind(msg.Type) {
	case kindInitializeLocation:
		s.handleInitializeLocation(ctx, msg)
	case kindLiveTracking:
		s.handleLiveTracking(ctx, msg)
	case kindUnknown:
		// echoes the type value as received; an absent type field reads as ""
		_ = s.member.writeJSON(contracts.ErrorReply{
			Error: fmt.Sprintf("Unknown message type: %s", msg.Type),
		})
	}
}

// handleInitializeLocation persists the first position and acknowledges the
// sender only. No broadcast: initialization is private to the connection.
func (s *Session) handleInitializeLocation(ctx context.Context, msg contracts.ClientLocationMessage) {
	if msg.Lat == nil || msg.Lng == nil {
		_ = s.member.writeJSON(contracts.StatusReply{Status: "error", Message: "lat and lng are required"})
		return
	}

	if err := s.ts.store.UpsertCurrentLocation(ctx, s.identity.UserID, *msg.Lat, *msg.Lng); err != nil {
		s.ts.logger.Error(ctx, "location_init_store_failed", "Failed to persist initial location", err,
			map[string]any{"user_id": s.identity.UserID})
		_ = s.member.writeJSON(contracts.StatusReply{Status: "error", Message: "failed to update location"})
		return
	}

	_ = s.member.writeJSON(contracts.StatusReply{
		Status:  "success",
		Message: "Initial location updated",
		Lat:     msg.Lat,
		Lng:     msg.Lng,
	})
}

// handleLiveTracking persists the position, then fans it out to every member
// of the driver's group, the sender included. A failed store write is
// reported to the sender and suppresses the broadcast, so listeners never
// see a position the store did not accept.
func (s *Session) handleLiveTracking(ctx context.Context, msg contracts.ClientLocationMessage) {
	if msg.Lat == nil || msg.Lng == nil {
		_ = s.member.writeJSON(contracts.StatusReply{Status: "error", Message: "lat and lng are required"})
		return
	}

	if err := s.ts.store.UpsertCurrentLocation(ctx, s.identity.UserID, *msg.Lat, *msg.Lng); err != nil {
		s.ts.logger.Error(ctx, "live_tracking_store_failed", "Failed to persist live location", err,
			map[string]any{"user_id": s.identity.UserID})
		_ = s.member.writeJSON(contracts.StatusReply{Status: "error", Message: "failed to update location"})
		return
	}

	s.ts.registry.Broadcast(ctx, s.groupKey, contracts.LocationUpdate{
		Type:   contracts.TypeLocationUpdate,
		UserID: s.identity.UserID,
		Email:  s.identity.Email,
		Lat:    *msg.Lat,
		Lng:    *msg.Lng,
	})

	s.publishLocationEvent(ctx, *msg.Lat, *msg.Lng)
}

// publishLocationEvent mirrors the accepted sample onto the broker fanout
// for external dispatch consumers. Publish failures are non-fatal.
func (s *Session) publishLocationEvent(ctx context.Context, lat, lng float64) {
	if s.ts.pub == nil {
		return
	}

	event := contracts.LocationUpdateMessage{
		UserID:    s.identity.UserID,
		Email:     s.identity.Email,
		Location:  contracts.GeoPoint{Lat: lat, Lng: lng},
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			Producer: "tracking-service",
			SentAt:   time.Now().UTC(),
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.ts.logger.Error(ctx, "location_event_marshal_failed", "Failed to marshal location event", err,
			map[string]any{"user_id": s.identity.UserID})
		return
	}

	if err := s.ts.pub.Publish(contracts.ExchangeLocationFanout, "", body); err != nil {
		s.ts.logger.Error(ctx, "location_event_publish_failed", "Failed to publish location event", err,
			map[string]any{"user_id": s.identity.UserID})
	}
}

// teardown implements ACTIVE -> CLOSED. It runs exactly once no matter
// which side or cause initiated the disconnect: leave the group (idempotent
// either way), then best-effort mark the driver offline. A failing offline
// hook must never prevent teardown from completing.
func (s *Session) teardown(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.ts.registry.Leave(s.groupKey, s.member)
		s.state = stateClosed

		if err := s.ts.store.MarkOffline(ctx, s.identity.UserID); err != nil {
			s.ts.logger.Error(ctx, "mark_offline_failed", "Failed to mark driver offline", err,
				map[string]any{"user_id": s.identity.UserID})
		}

		s.ts.logger.Info(ctx, "ws_session_closed", "Tracking session closed",
			map[string]any{"user_id": s.identity.UserID})
	})
}

// pingLoop keeps the connection alive until stop closes or a ping fails.
func (s *Session) pingLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.member.mu.Lock()
			_ = s.member.conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
			err := s.member.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			s.member.mu.Unlock()
			if err != nil {
				// Close socket to unblock reader; goroutine exits.
				_ = s.member.conn.Close()
				s.ts.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err,
					map[string]any{"user_id": s.identity.UserID})
				return
			}
		}
	}
}
