package chat

import (
	"log/slog"
	"sync"
	"time"
)

// State is a session's position in the hand-off lifecycle.
type State int

const (
	// StateIdle means the session is bot-served (no registry entry).
	StateIdle State = iota
	// StateAwaitingHuman means a hand-off was requested and no admin has
	// accepted yet.
	StateAwaitingHuman
	// StateEngaged means a human admin is actively staffing the session.
	StateEngaged
)

func (s State) String() string {
	switch s {
	case StateAwaitingHuman:
		return "awaiting-human"
	case StateEngaged:
		return "engaged"
	default:
		return "idle"
	}
}

type adminPresence struct {
	muted bool
}

// sessionEntry exists only while a session is awaiting or engaged.
// Timer generations guard against a stale timer goroutine firing after
// its timer was cancelled and replaced.
type sessionEntry struct {
	state    State
	graceGen uint64
	grace    *time.Timer
	idleGen  uint64
	idle     *time.Timer
	admins   map[string]*adminPresence
}

// Registry is the process-wide presence state: which sessions are awaiting
// or staffed, which admin connections staff them, and the cancellable
// grace-window and inactivity timer handles. It is never persisted; a
// restart loses all presence state and clients re-request hand-off.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
	}
}

// StateOf returns the session's current hand-off state.
func (r *Registry) StateOf(sessionID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sessionID]; ok {
		return e.state
	}
	return StateIdle
}

// IsEngaged reports whether a human admin is actively staffing the session.
func (r *Registry) IsEngaged(sessionID string) bool {
	return r.StateOf(sessionID) == StateEngaged
}

// RequestHuman moves an idle session to AwaitingHuman. Returns true when
// the session entered AwaitingHuman as a result of this call; false when
// it was already awaiting or engaged (a repeated request).
func (r *Registry) RequestHuman(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; ok {
		return false
	}
	r.sessions[sessionID] = &sessionEntry{
		state:  StateAwaitingHuman,
		admins: make(map[string]*adminPresence),
	}
	slog.Info("Session awaiting human", "session_id", sessionID)
	return true
}

// StartGrace schedules the no-admin-available fallback. The callback fires
// only if the session is still AwaitingHuman at fire time; an accept that
// lands first wins the race. Any prior grace timer is cancelled, never
// stacked.
func (r *Registry) StartGrace(sessionID string, d time.Duration, expired func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok || e.state != StateAwaitingHuman {
		return
	}

	if e.grace != nil {
		e.grace.Stop()
	}
	e.graceGen++
	gen := e.graceGen
	e.grace = time.AfterFunc(d, func() {
		r.graceFired(sessionID, gen, expired)
	})
}

func (r *Registry) graceFired(sessionID string, gen uint64, expired func()) {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if !ok || e.graceGen != gen || e.state != StateAwaitingHuman {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	slog.Info("Hand-off grace window expired", "session_id", sessionID)
	expired()
}

// Accept moves a session to Engaged for the accepting admin and starts the
// inactivity timer. Cancels a pending grace timer. Safe to call for a
// session with no registry entry (an accept after restart or expiry).
func (r *Registry) Accept(sessionID, adminID string, idle time.Duration, expired func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		e = &sessionEntry{admins: make(map[string]*adminPresence)}
		r.sessions[sessionID] = e
	}

	if e.grace != nil {
		e.grace.Stop()
		e.grace = nil
	}
	e.graceGen++

	e.state = StateEngaged
	e.admins[adminID] = &adminPresence{}
	r.resetIdleLocked(sessionID, e, idle, expired)
	slog.Info("Session engaged", "session_id", sessionID, "admin_id", adminID)
}

// Touch restarts the inactivity timer for an engaged session (sliding
// window). Returns false if the session is not engaged.
func (r *Registry) Touch(sessionID string, idle time.Duration, expired func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok || e.state != StateEngaged {
		return false
	}
	r.resetIdleLocked(sessionID, e, idle, expired)
	return true
}

// resetIdleLocked cancels any pending inactivity timer and schedules a
// fresh one. Callers hold r.mu.
func (r *Registry) resetIdleLocked(sessionID string, e *sessionEntry, idle time.Duration, expired func()) {
	if e.idle != nil {
		e.idle.Stop()
	}
	e.idleGen++
	gen := e.idleGen
	e.idle = time.AfterFunc(idle, func() {
		r.idleFired(sessionID, gen, expired)
	})
}

func (r *Registry) idleFired(sessionID string, gen uint64, expired func()) {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if !ok || e.idleGen != gen || e.state != StateEngaged {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	slog.Info("Session disengaged by inactivity", "session_id", sessionID)
	expired()
}

// SetMuted sets the mute flag for an admin on a session's roster.
func (r *Registry) SetMuted(sessionID, adminID string, muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sessionID]; ok {
		if a, ok := e.admins[adminID]; ok {
			a.muted = muted
		}
	}
}

// IsMuted reports whether the admin is muted for the session.
func (r *Registry) IsMuted(sessionID, adminID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sessionID]; ok {
		if a, ok := e.admins[adminID]; ok {
			return a.muted
		}
	}
	return false
}

// RemoveAdmin drops an admin from a session's roster. Removing the last
// admin does not end the engagement; the inactivity timer keeps running.
func (r *Registry) RemoveAdmin(sessionID, adminID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sessionID]; ok {
		delete(e.admins, adminID)
	}
}

// RemoveAdminEverywhere drops an admin from every roster (connection
// closed).
func (r *Registry) RemoveAdminEverywhere(adminID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.sessions {
		delete(e.admins, adminID)
	}
}

// Admins returns a copy of the session's roster as adminID -> muted.
func (r *Registry) Admins(sessionID string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]bool)
	if e, ok := r.sessions[sessionID]; ok {
		for id, a := range e.admins {
			out[id] = a.muted
		}
	}
	return out
}

// ClearAll removes every presence entry and cancels all pending timers.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		if e.grace != nil {
			e.grace.Stop()
		}
		if e.idle != nil {
			e.idle.Stop()
		}
		e.graceGen++
		e.idleGen++
		delete(r.sessions, id)
	}
}

// Clear removes a session's presence entry and cancels its timers.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if e.grace != nil {
		e.grace.Stop()
	}
	if e.idle != nil {
		e.idle.Stop()
	}
	e.graceGen++
	e.idleGen++
	delete(r.sessions, sessionID)
}
