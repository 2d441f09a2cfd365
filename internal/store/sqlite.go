package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bagstory/ecopack-server/internal/domain"
	"github.com/bagstory/ecopack-server/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_sessions (
		email TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		notified_handoff INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_session_id ON chat_sessions(session_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL,
		text TEXT NOT NULL,
		sender TEXT NOT NULL,
		sender_name TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_email ON chat_messages(email, id);

	CREATE TABLE IF NOT EXISTS leads (
		lead_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		source TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'New',
		message TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSessionByEmail retrieves a session with its message log by contact email.
func (s *SQLiteStore) GetSessionByEmail(ctx context.Context, email string) (*domain.ChatSession, error) {
	return s.getSession(ctx, `WHERE email = ?`, email)
}

// GetSessionByID retrieves a session with its message log by session identifier.
func (s *SQLiteStore) GetSessionByID(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	return s.getSession(ctx, `WHERE session_id = ?`, sessionID)
}

func (s *SQLiteStore) getSession(ctx context.Context, where string, arg interface{}) (*domain.ChatSession, error) {
	query := `
		SELECT email, session_id, name, notified_handoff, created_at, updated_at
		FROM chat_sessions ` + where

	row := s.db.QueryRowContext(ctx, query, arg)

	var session domain.ChatSession
	var notified int
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.Email, &session.SessionID, &session.Name,
		&notified, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.NotifiedHandoff = notified != 0
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	messages, err := s.loadMessages(ctx, session.Email)
	if err != nil {
		return nil, err
	}
	session.Messages = messages

	return &session, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, email string) ([]domain.Message, error) {
	query := `
		SELECT text, sender, sender_name, created_at
		FROM chat_messages WHERE email = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var senderName sql.NullString
		var createdAt int64

		if err := rows.Scan(&msg.Text, &msg.Sender, &senderName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.Name = senderName.String
		msg.Timestamp = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// UpsertSession creates or updates a session record.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.ChatSession) error {
	query := `
	INSERT INTO chat_sessions (email, session_id, name, notified_handoff, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		session_id = excluded.session_id,
		name = excluded.name,
		notified_handoff = excluded.notified_handoff,
		updated_at = excluded.updated_at`

	notified := 0
	if session.NotifiedHandoff {
		notified = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		session.Email, session.SessionID, session.Name, notified,
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// AppendMessage appends one message to a session's log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, email string, msg domain.Message) error {
	query := `
	INSERT INTO chat_messages (email, text, sender, sender_name, created_at)
	VALUES (?, ?, ?, ?, ?)`

	var senderName interface{}
	if msg.Name != "" {
		senderName = msg.Name
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query, email, msg.Text, string(msg.Sender), senderName, ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE email = ?`,
		time.Now().Unix(), email,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// SetSessionID replaces the session identifier for a contact.
func (s *SQLiteStore) SetSessionID(ctx context.Context, email, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET session_id = ?, updated_at = ? WHERE email = ?`,
		sessionID, time.Now().Unix(), email,
	)
	if err != nil {
		return fmt.Errorf("set session_id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session for %s: %w", email, ErrNotFound)
	}
	return nil
}

// SetHandoffNotified updates the hand-off notification flag.
func (s *SQLiteStore) SetHandoffNotified(ctx context.Context, email string, notified bool) error {
	val := 0
	if notified {
		val = 1
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET notified_handoff = ?, updated_at = ? WHERE email = ?`,
		val, time.Now().Unix(), email,
	)
	if err != nil {
		return fmt.Errorf("set notified_handoff: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("SetHandoffNotified affected 0 rows", "email", email)
	}
	return nil
}

// UpdateSessionEmail re-keys a session and its messages to a new contact email.
func (s *SQLiteStore) UpdateSessionEmail(ctx context.Context, oldEmail, newEmail string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			slog.Warn("failed to rollback email update", "error", rollbackErr)
		}
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET email = ?, updated_at = ? WHERE email = ?`,
		newEmail, time.Now().Unix(), oldEmail,
	)
	if err != nil {
		return fmt.Errorf("update session email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session for %s: %w", oldEmail, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_messages SET email = ? WHERE email = ?`,
		newEmail, oldEmail,
	); err != nil {
		return fmt.Errorf("update message email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit email update: %w", err)
	}
	return nil
}

// ListSessions returns all chat sessions with their message logs.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*domain.ChatSession, error) {
	query := `
		SELECT email, session_id, name, notified_handoff, created_at, updated_at
		FROM chat_sessions ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.ChatSession
	for rows.Next() {
		var session domain.ChatSession
		var notified int
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&session.Email, &session.SessionID, &session.Name,
			&notified, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		session.NotifiedHandoff = notified != 0
		session.CreatedAt = time.Unix(createdAt, 0)
		session.UpdatedAt = time.Unix(updatedAt, 0)
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	for _, session := range sessions {
		messages, err := s.loadMessages(ctx, session.Email)
		if err != nil {
			return nil, err
		}
		session.Messages = messages
	}

	return sessions, nil
}

// ClearSessions deletes every session and message.
// Retries on SQLITE_BUSY since the websocket layer may be writing concurrently.
func (s *SQLiteStore) ClearSessions(ctx context.Context) (int64, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var deleted int64
	var err error
	for i := 0; i < maxRetries; i++ {
		deleted, err = s.clearSessionsOnce(ctx)
		if err == nil {
			return deleted, nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("ClearSessions failed with SQLITE_BUSY, retrying",
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return 0, fmt.Errorf("clear sessions after %d attempts: %w", maxRetries, err)
}

func (s *SQLiteStore) clearSessionsOnce(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			slog.Warn("failed to rollback session clear", "error", rollbackErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit session clear: %w", err)
	}
	return deleted, nil
}

// GetLeadByEmail retrieves a lead by contact email.
func (s *SQLiteStore) GetLeadByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	query := `
		SELECT lead_id, name, email, source, date, status, message, created_at, updated_at
		FROM leads WHERE email = ?`

	row := s.db.QueryRowContext(ctx, query, email)

	var lead domain.Lead
	var message sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Source,
		&lead.Date, &lead.Status, &message, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan lead row: %w", err)
	}

	lead.Message = message.String
	lead.CreatedAt = time.Unix(createdAt, 0)
	lead.UpdatedAt = time.Unix(updatedAt, 0)

	return &lead, nil
}

// CreateLead stores a new lead record.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *domain.Lead) error {
	query := `
	INSERT INTO leads (lead_id, name, email, source, date, status, message, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var message interface{}
	if lead.Message != "" {
		message = lead.Message
	}

	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		lead.ID, lead.Name, lead.Email, lead.Source,
		lead.Date, lead.Status, message,
		lead.CreatedAt.Unix(), lead.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}
