package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bagstory/ecopack-server/internal/chat"
	"github.com/bagstory/ecopack-server/internal/identity"
	"github.com/bagstory/ecopack-server/internal/store"
)

// ChatHandler handles chat submission and transcript management endpoints.
type ChatHandler struct {
	*Handler
	adminKey string
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(h *Handler, adminKey string) *ChatHandler {
	return &ChatHandler{Handler: h, adminKey: adminKey}
}

// RegisterRoutes registers chat endpoints on the router.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/history", h.History)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireAdmin(h.adminKey))
			r.Get("/all", h.ListAll)
			r.Put("/update-email", h.UpdateEmail)
			r.Delete("/clear", h.Clear)
		})
	})
	r.Get("/health", h.Health)
}

// Submit accepts a guest message from the chat widget, routes it through the
// coordinator, and returns the reply (or hand-off acknowledgement).
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req chat.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if msg := validateSubmission(req); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.coord.Submit(r.Context(), req)
	if err != nil {
		slog.Error("Failed to process chat message", "email", req.Email, "error", err)
		h.notifier.EmailAdmins(r.Context(), "Error: Chat Message Save Failed",
			fmt.Sprintf("A chat message from %s <%s> could not be saved.\n\nMessage: %s\n\nError: %v",
				req.Name, req.Email, req.Message, err))
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, result)
}

// History returns the stored transcript for a contact email, used by the
// widget to restore an earlier conversation.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		Error(w, http.StatusBadRequest, "email is required")
		return
	}

	session, err := h.repo.GetSessionByEmail(r.Context(), email)
	if err != nil {
		slog.Error("Failed to load chat history", "email", email, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "no chat history found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"messages": session.Messages,
		"userId":   session.SessionID,
	})
}

// ListAll returns every stored chat session with its transcript.
func (h *ChatHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessions(r.Context())
	if err != nil {
		slog.Error("Failed to list chat sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list chat sessions")
		return
	}
	JSON(w, http.StatusOK, sessions)
}

type updateEmailRequest struct {
	OldEmail string `json:"oldEmail"`
	NewEmail string `json:"newEmail"`
}

// UpdateEmail re-keys a chat session to a corrected contact email.
func (h *ChatHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OldEmail = strings.TrimSpace(req.OldEmail)
	req.NewEmail = strings.TrimSpace(req.NewEmail)
	if req.OldEmail == "" || req.NewEmail == "" {
		Error(w, http.StatusBadRequest, "oldEmail and newEmail are required")
		return
	}
	if !isValidEmail(req.NewEmail) {
		Error(w, http.StatusBadRequest, "newEmail is not a valid email address")
		return
	}

	if err := h.repo.UpdateSessionEmail(r.Context(), req.OldEmail, req.NewEmail); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "no chat session found for that email")
			return
		}
		slog.Error("Failed to update chat email", "old_email", req.OldEmail, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update email")
		return
	}

	slog.Info("Chat session re-keyed", "old_email", req.OldEmail, "new_email", req.NewEmail)
	JSON(w, http.StatusOK, map[string]string{"message": "Email updated successfully"})
}

// Clear deletes every chat session and transcript.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.ClearSessions(r.Context())
	if err != nil {
		slog.Error("Failed to clear chat history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear chat history")
		return
	}

	h.coord.Reset()
	slog.Info("Chat history cleared", "sessions_removed", count, "admin_id", identity.AdminIDFromContext(r.Context()))
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "All chat history cleared successfully",
		"count":   count,
	})
}

// Health reports service and database status.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validateSubmission(req chat.SubmissionRequest) string {
	switch {
	case req.Name == "":
		return "name is required"
	case req.Email == "":
		return "email is required"
	case !isValidEmail(req.Email):
		return "email is not a valid email address"
	case req.Message == "":
		return "message is required"
	}
	return ""
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
