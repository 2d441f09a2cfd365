// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/bagstory/ecopack-server/internal/domain"
)

// ErrNotFound is returned by mutating operations that target a missing
// record. Lookup methods return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for persisting chat sessions and leads.
type Repository interface {
	// GetSessionByEmail retrieves a chat session (with its full message log)
	// by contact email. Returns (nil, nil) when no session exists.
	GetSessionByEmail(ctx context.Context, email string) (*domain.ChatSession, error)

	// GetSessionByID retrieves a chat session by its session identifier.
	// Returns (nil, nil) when no session exists.
	GetSessionByID(ctx context.Context, sessionID string) (*domain.ChatSession, error)

	// UpsertSession creates or updates a session record. Messages are not
	// written here; use AppendMessage.
	UpsertSession(ctx context.Context, session *domain.ChatSession) error

	// AppendMessage appends one message to a session's log. Append order is
	// the order of calls; the log is never reordered.
	AppendMessage(ctx context.Context, email string, msg domain.Message) error

	// SetSessionID replaces the session identifier for a contact (guest token
	// promoted to the stable lead ID).
	SetSessionID(ctx context.Context, email, sessionID string) error

	// SetHandoffNotified updates the hand-off notification flag.
	SetHandoffNotified(ctx context.Context, email string, notified bool) error

	// UpdateSessionEmail re-keys a session (and its messages) to a new
	// contact email.
	UpdateSessionEmail(ctx context.Context, oldEmail, newEmail string) error

	// ListSessions returns all chat sessions with their message logs.
	ListSessions(ctx context.Context) ([]*domain.ChatSession, error)

	// ClearSessions deletes every session and message. Returns the number of
	// sessions removed.
	ClearSessions(ctx context.Context) (int64, error)

	// GetLeadByEmail retrieves a lead by contact email.
	// Returns (nil, nil) when no lead exists.
	GetLeadByEmail(ctx context.Context, email string) (*domain.Lead, error)

	// CreateLead stores a new lead record.
	CreateLead(ctx context.Context, lead *domain.Lead) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
