package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"haultrack/internal/general/contracts"
	"haultrack/internal/general/jwt"
	"haultrack/internal/general/logger"
	"haultrack/internal/ports"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// TrackingSocket owns the tracking feed endpoint: it gates incoming
// connections on a resolvable identity and hands accepted ones to a session.
type TrackingSocket struct {
	logger   *logger.Logger
	auth     ports.TokenAuthenticator
	store    ports.LocationStore
	registry *GroupRegistry
	pub      ports.EventPublisher // nil disables the broker fanout
}

// NewTrackingSocket wires the tracking WebSocket handler.
func NewTrackingSocket(
	logger *logger.Logger,
	auth ports.TokenAuthenticator,
	store ports.LocationStore,
	registry *GroupRegistry,
	pub ports.EventPublisher,
) *TrackingSocket {
	return &TrackingSocket{
		logger:   logger,
		auth:     auth,
		store:    store,
		registry: registry,
		pub:      pub,
	}
}

// Registry exposes the group registry (admin/debug use).
func (ts *TrackingSocket) Registry() *GroupRegistry {
	return ts.registry
}

// groupKeyFor picks the broadcast group a connection joins. By default that
// is the identity's own driver group. Dispatchers and admins may instead
// watch another driver's group via ?driver_id=; drivers asking for a foreign
// group are pinned to their own.
func (ts *TrackingSocket) groupKeyFor(ctx context.Context, identity *ports.Identity, r *http.Request) string {
	target := strings.TrimSpace(r.URL.Query().Get("driver_id"))
	if target == "" || target == identity.UserID {
		return contracts.DriverGroupKey(identity.UserID)
	}
	if identity.Role.IsDriver() {
		ts.logger.Info(ctx, "ws_watch_denied", "Driver attempted to watch a foreign group",
			map[string]any{"user_id": identity.UserID, "target": target})
		return contracts.DriverGroupKey(identity.UserID)
	}
	return contracts.DriverGroupKey(target)
}

// ServeTracking handles GET /ws/tracking?token=<jwt>.
//
// The token is resolved to an identity before any application frame is
// exchanged. An unresolvable token still gets a transport-level accept, but
// the connection is immediately closed with code 4001 and never joins a
// group. Each connection runs in its own handler goroutine, so the blocking
// identity lookup stalls only this handshake.
func (ts *TrackingSocket) ServeTracking(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ts.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()

	member := newMember(conn)

	identity := ts.auth.Resolve(r.Context(), jwt.FromQuery(r))
	if identity == nil {
		ts.logger.Info(r.Context(), "ws_rejected_anonymous", "Anonymous connection rejected", nil)
		member.writeClose(contracts.CloseUnauthenticated, "authentication required")
		return
	}

	ctx := ts.logger.WithDriverID(r.Context(), identity.UserID)

	session := newSession(ts, identity, ts.groupKeyFor(ctx, identity, r), member)
	if err := session.activate(ctx); err != nil {
		ts.logger.Error(ctx, "ws_ack_failed", "Failed to send connection acknowledgement", err, nil)
		session.teardown(ctx)
		return
	}

	ts.logger.Info(ctx, "ws_connected", "Tracking WebSocket connected",
		map[string]any{"user_id": identity.UserID, "email": identity.Email})

	// keepalive: extend the read deadline on every pong, ping on a ticker
	conn.SetReadLimit(1 << 20) // 1 MiB
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go session.pingLoop(ctx, stopPing)

	session.run(ctx)
}
