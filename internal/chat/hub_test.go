package chat

import (
	"context"
	"sync"
	"testing"
)

// fakeConn is an in-memory Conn that records delivered events.
type fakeConn struct {
	mu     sync.Mutex
	events []Event
}

func (c *fakeConn) Send(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) eventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.events))
	for i, ev := range c.events {
		names[i] = ev.Name
	}
	return names
}

func (c *fakeConn) countEvent(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub()
	guest := &fakeConn{}
	admin := &fakeConn{}
	other := &fakeConn{}

	hub.Join("session-1", guest)
	hub.Join(AdminRoom, admin)
	hub.Join("session-2", other)

	hub.Broadcast(context.Background(), "session-1", Event{Name: EventMessage})

	if got := guest.countEvent(EventMessage); got != 1 {
		t.Errorf("guest received %d message events, want 1", got)
	}
	if got := admin.countEvent(EventMessage); got != 0 {
		t.Errorf("admin room member received %d message events, want 0", got)
	}
	if got := other.countEvent(EventMessage); got != 0 {
		t.Errorf("other session received %d message events, want 0", got)
	}
}

func TestBroadcastToEmptyRoomIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(context.Background(), "nobody-home", Event{Name: EventMessage})
}

func TestLeaveAllRemovesFromEveryRoom(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Join("session-1", c)
	hub.Join(AdminRoom, c)

	hub.LeaveAll(c)

	if got := hub.RoomSize("session-1"); got != 0 {
		t.Errorf("session-1 size = %d, want 0", got)
	}
	if got := hub.RoomSize(AdminRoom); got != 0 {
		t.Errorf("admin room size = %d, want 0", got)
	}

	hub.Broadcast(context.Background(), "session-1", Event{Name: EventMessage})
	if got := c.countEvent(EventMessage); got != 0 {
		t.Errorf("departed connection received %d events, want 0", got)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Join("session-1", c)
	hub.Join("session-1", c)

	if got := hub.RoomSize("session-1"); got != 1 {
		t.Errorf("room size = %d, want 1", got)
	}

	hub.Broadcast(context.Background(), "session-1", Event{Name: EventMessage})
	if got := c.countEvent(EventMessage); got != 1 {
		t.Errorf("connection received %d events, want 1", got)
	}
}
