package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"haultrack/internal/general/logger"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
)

// Member wraps one live connection registered in a broadcast group. The
// mutex serializes writes: gorilla/websocket allows at most one concurrent
// writer per connection, and broadcasts race with direct replies.
type Member struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newMember(conn *websocket.Conn) *Member {
	return &Member{conn: conn}
}

// writeJSON marshals v and writes a single TextMessage under the write lock.
func (m *Member) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return m.conn.WriteMessage(websocket.TextMessage, payload)
}

// writeClose sends a close control frame with the given code and reason.
func (m *Member) writeClose(code int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = m.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
}

// GroupRegistry maintains, per driver identity, the set of connections
// subscribed to that driver's location stream. Membership is the only state
// mutated concurrently by multiple connection loops, so every operation runs
// under the registry lock; the raw sets are never handed to callers.
type GroupRegistry struct {
	mu     sync.RWMutex
	groups map[string]map[*Member]struct{}
	logger *logger.Logger
}

// NewGroupRegistry constructs an empty registry.
func NewGroupRegistry(logger *logger.Logger) *GroupRegistry {
	return &GroupRegistry{
		groups: make(map[string]map[*Member]struct{}),
		logger: logger,
	}
}

// Join adds the member to groupKey, creating the group on first join.
func (registry *GroupRegistry) Join(groupKey string, member *Member) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	set, ok := registry.groups[groupKey]
	if !ok {
		set = make(map[*Member]struct{})
		registry.groups[groupKey] = set
	}
	set[member] = struct{}{}
}

// Leave removes the member from groupKey. Removing an absent member (or a
// member of an absent group) is a no-op, never an error; empty groups are
// pruned.
func (registry *GroupRegistry) Leave(groupKey string, member *Member) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	set, ok := registry.groups[groupKey]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(registry.groups, groupKey)
	}
}

// Broadcast delivers v to every member of groupKey at the moment of the
// call, including the sender. A failed write to one member is logged and
// skipped; it never aborts delivery to the rest. Delivery order across
// members is unspecified.
func (registry *GroupRegistry) Broadcast(ctx context.Context, groupKey string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		registry.logger.Error(ctx, "broadcast_marshal_failed", "Failed to marshal broadcast message", err,
			map[string]any{"group": groupKey})
		return
	}

	// snapshot under the read lock, write outside it: a slow member must not
	// block join/leave, and a member disconnecting mid-fanout only fails its
	// own write
	registry.mu.RLock()
	members := make([]*Member, 0, len(registry.groups[groupKey]))
	for member := range registry.groups[groupKey] {
		members = append(members, member)
	}
	registry.mu.RUnlock()

	for _, member := range members {
		member.mu.Lock()
		_ = member.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		err := member.conn.WriteMessage(websocket.TextMessage, payload)
		member.mu.Unlock()

		if err != nil {
			registry.logger.Error(ctx, "broadcast_member_failed", "Failed to deliver broadcast to a group member", err,
				map[string]any{"group": groupKey})
		}
	}
}

// MemberCount returns the current size of a group (admin/debug use).
func (registry *GroupRegistry) MemberCount(groupKey string) int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.groups[groupKey])
}
