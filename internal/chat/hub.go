package chat

import (
	"context"
	"log/slog"
	"sync"
)

// AdminRoom is the channel shared by every logged-in admin connection.
const AdminRoom = "admins"

// Conn is an outbound event sink for one connected client. The websocket
// layer wraps real connections; tests substitute in-memory fakes.
type Conn interface {
	Send(ctx context.Context, ev Event) error
}

// Hub routes events to the connections subscribed to a room. Guest
// connections subscribe to their session's room; admin connections
// subscribe to AdminRoom and to the rooms of sessions they accepted.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]struct{}),
	}
}

// Join subscribes a connection to a room.
func (h *Hub) Join(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// Leave unsubscribes a connection from a room.
func (h *Hub) Leave(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// LeaveAll unsubscribes a connection from every room it joined.
func (h *Hub) LeaveAll(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of connections subscribed to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers an event to every connection in a room. Send failures
// are logged and do not stop delivery to the remaining members.
func (h *Hub) Broadcast(ctx context.Context, room string, ev Event) {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.Send(ctx, ev); err != nil {
			slog.Debug("Failed to deliver event", "room", room, "event", ev.Name, "error", err)
		}
	}
}

// SendTo delivers an event to a single connection.
func (h *Hub) SendTo(ctx context.Context, c Conn, ev Event) {
	if err := c.Send(ctx, ev); err != nil {
		slog.Debug("Failed to deliver event", "event", ev.Name, "error", err)
	}
}
