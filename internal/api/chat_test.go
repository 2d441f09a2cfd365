package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bagstory/ecopack-server/internal/assistant"
	"github.com/bagstory/ecopack-server/internal/chat"
	"github.com/bagstory/ecopack-server/internal/identity"
	"github.com/bagstory/ecopack-server/internal/notify"
	"github.com/bagstory/ecopack-server/internal/store"
)

const testAdminKey = "test-admin-key"

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	hub := chat.NewHub()
	registry := chat.NewRegistry()
	notifier := notify.NewNotifier(nil, nil, "", nil)
	coord := chat.NewCoordinator(repo, hub, registry, nil, notifier, time.Minute, time.Minute)

	handler := NewChatHandler(NewHandler(repo, coord, notifier), testAdminKey)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubmitValidation(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"email": "d@example.com", "message": "hi"}},
		{"missing email", map[string]string{"name": "Dana", "message": "hi"}},
		{"invalid email", map[string]string{"name": "Dana", "email": "not-an-email", "message": "hi"}},
		{"missing message", map[string]string{"name": "Dana", "email": "d@example.com"}},
		{"blank message", map[string]string{"name": "Dana", "email": "d@example.com", "message": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, r, "/api/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSubmitReturnsReply(t *testing.T) {
	r := newTestRouter(t)

	rec := postJSON(t, r, "/api/chat", map[string]string{
		"name": "Dana", "email": "dana@example.com", "message": "do you ship to Canada?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result chat.SubmissionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// No responder configured, so the fallback reply is returned.
	if result.Reply != assistant.FallbackReply {
		t.Errorf("reply = %q, want fallback", result.Reply)
	}
	if result.SessionID == "" {
		t.Error("response missing userId")
	}
}

func TestHistory(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?email=ghost@example.com", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for unknown email = %d, want 404", rec.Code)
	}

	postJSON(t, r, "/api/chat", map[string]string{
		"name": "Dana", "email": "dana@example.com", "message": "hello",
	})

	req = httptest.NewRequest(http.MethodGet, "/api/chat/history?email=dana@example.com", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Messages []json.RawMessage `json:"messages"`
		UserID   string            `json:"userId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Guest message plus fallback reply.
	if len(body.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(body.Messages))
	}
	if body.UserID == "" {
		t.Error("history missing userId")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without email = %d, want 400", rec.Code)
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/all", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/all", nil)
	req.Header.Set(identity.AdminKeyHeader, testAdminKey)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rec.Code)
	}
}

func TestUpdateEmail(t *testing.T) {
	r := newTestRouter(t)
	postJSON(t, r, "/api/chat", map[string]string{
		"name": "Dana", "email": "old@example.com", "message": "hello",
	})

	body, _ := json.Marshal(map[string]string{"oldEmail": "old@example.com", "newEmail": "new@example.com"})
	req := httptest.NewRequest(http.MethodPut, "/api/chat/update-email", bytes.NewReader(body))
	req.Header.Set(identity.AdminKeyHeader, testAdminKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// The old email no longer resolves.
	body, _ = json.Marshal(map[string]string{"oldEmail": "old@example.com", "newEmail": "third@example.com"})
	req = httptest.NewRequest(http.MethodPut, "/api/chat/update-email", bytes.NewReader(body))
	req.Header.Set(identity.AdminKeyHeader, testAdminKey)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for stale email = %d, want 404", rec.Code)
	}
}

func TestClear(t *testing.T) {
	r := newTestRouter(t)
	postJSON(t, r, "/api/chat", map[string]string{
		"name": "Dana", "email": "dana@example.com", "message": "hello",
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/clear", nil)
	req.Header.Set(identity.AdminKeyHeader, testAdminKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/history?email=dana@example.com", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("history after clear = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
