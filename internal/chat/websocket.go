package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/bagstory/ecopack-server/internal/identity"
)

// WebSocketHandler upgrades chat widget and admin console connections and
// dispatches their inbound events to the coordinator.
type WebSocketHandler struct {
	coord         *Coordinator
	hub           *Hub
	registry      *Registry
	adminKey      string
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the realtime endpoint handler.
func NewWebSocketHandler(coord *Coordinator, hub *Hub, registry *Registry, adminKey, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		coord:         coord,
		hub:           hub,
		registry:      registry,
		adminKey:      adminKey,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsConn adapts a websocket connection to the hub's Conn interface.
// Writes are serialized; the hub may broadcast from multiple goroutines.
type wsConn struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	isAdmin bool
	adminID string
}

// Send writes one event to the connection.
func (c *wsConn) Send(ctx context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsjson.Write(ctx, c.conn, ev)
}

// inboundEvent is the envelope for client-to-server events.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type adminLoginPayload struct {
	Key     string `json:"key"`
	AdminID string `json:"adminId"`
}

type roomPayload struct {
	SessionID string `json:"userId"`
}

type adminMessagePayload struct {
	SessionID   string `json:"userId"`
	Text        string `json:"text"`
	SenderLabel string `json:"senderLabel"`
}

type managePayload struct {
	SessionID string `json:"userId"`
	AdminID   string `json:"adminId"`
	Action    string `json:"action"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", identity.IPFromRequest(r))
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	client := &wsConn{conn: ws}
	slog.Info("Chat connection opened", "ip", identity.IPFromRequest(r))

	defer func() {
		h.hub.LeaveAll(client)
		if client.isAdmin {
			h.registry.RemoveAdminEverywhere(client.adminID)
			slog.Info("Admin connection closed", "admin_id", client.adminID)
		}
	}()

	ctx := r.Context()
	for {
		var ev inboundEvent
		if err := wsjson.Read(ctx, ws, &ev); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client")
			} else {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		h.dispatch(ctx, client, ev)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, client *wsConn, ev inboundEvent) {
	switch ev.Event {
	case eventAdminLogin:
		h.handleAdminLogin(ctx, client, ev.Data)
	case eventJoinRoom:
		var p roomPayload
		if unmarshalOrReject(ctx, h.hub, client, ev.Data, &p) {
			if !allowJoin(client, p.SessionID) {
				h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "unauthorized"}})
				return
			}
			h.hub.Join(p.SessionID, client)
		}
	case eventLeaveRoom:
		var p roomPayload
		if unmarshalOrReject(ctx, h.hub, client, ev.Data, &p) {
			h.hub.Leave(p.SessionID, client)
		}
	case eventRequestHuman:
		h.handleRequestHuman(ctx, client, ev.Data)
	case eventUserMessage:
		h.handleUserMessage(ctx, client, ev.Data)
	case eventAcceptChat:
		h.handleAccept(ctx, client, ev.Data)
	case eventAdminSend:
		h.handleAdminMessage(ctx, client, ev.Data)
	case eventAdminManage:
		h.handleManage(ctx, client, ev.Data)
	default:
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{
			Message: "unknown event: " + ev.Event,
		}})
	}
}

func (h *WebSocketHandler) handleAdminLogin(ctx context.Context, client *wsConn, data json.RawMessage) {
	var p adminLoginPayload
	if !unmarshalOrReject(ctx, h.hub, client, data, &p) {
		return
	}
	if h.adminKey != "" && p.Key != h.adminKey {
		slog.Warn("Admin login rejected: bad key")
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "unauthorized"}})
		return
	}

	client.isAdmin = true
	client.adminID = p.AdminID
	if client.adminID == "" {
		client.adminID = uuid.NewString()
	}
	h.hub.Join(AdminRoom, client)
	slog.Info("Admin logged in", "admin_id", client.adminID)
}

type userMessagePayload struct {
	SessionID string `json:"userId"`
	Name      string `json:"name"`
	Text      string `json:"text"`
}

func (h *WebSocketHandler) handleRequestHuman(ctx context.Context, client *wsConn, data json.RawMessage) {
	var p roomPayload
	if !unmarshalOrReject(ctx, h.hub, client, data, &p) {
		return
	}

	if err := h.coord.RequestHandoff(ctx, p.SessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "chat session not found"}})
			return
		}
		slog.Error("Failed to handle human request", "session_id", p.SessionID, "error", err)
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "request failed"}})
	}
}

func (h *WebSocketHandler) handleUserMessage(ctx context.Context, client *wsConn, data json.RawMessage) {
	var p userMessagePayload
	if !unmarshalOrReject(ctx, h.hub, client, data, &p) {
		return
	}

	if err := h.coord.GuestMessage(ctx, p.SessionID, p.Name, p.Text); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "chat session not found"}})
			return
		}
		slog.Error("Failed to handle guest message", "session_id", p.SessionID, "error", err)
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "message delivery failed"}})
	}
}

func (h *WebSocketHandler) handleAccept(ctx context.Context, client *wsConn, data json.RawMessage) {
	if !h.requireAdmin(ctx, client) {
		return
	}
	var p roomPayload
	if !unmarshalOrReject(ctx, h.hub, client, data, &p) {
		return
	}

	// Broadcast human-connected before the admin joins the session room so
	// the notice is scoped to the guest.
	h.coord.Accept(ctx, p.SessionID, client.adminID)
	h.hub.Join(p.SessionID, client)
}

func (h *WebSocketHandler) handleAdminMessage(ctx context.Context, client *wsConn, data json.RawMessage) {
	if !h.requireAdmin(ctx, client) {
		return
	}
	var p adminMessagePayload
	if !unmarshalOrReject(ctx, h.hub, client, data, &p) {
		return
	}

	err := h.coord.AdminMessage(ctx, p.SessionID, client.adminID, p.SenderLabel, p.Text)
	switch {
	case errors.Is(err, ErrMuted):
		h.hub.SendTo(ctx, client, Event{Name: EventMessageBlocked, Payload: BlockedPayload{
			Reason: "You are muted for this chat.",
		}})
	case errors.Is(err, ErrSessionNotFound):
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "chat session not found"}})
	case err != nil:
		slog.Error("Failed to handle admin message", "session_id", p.SessionID, "error", err)
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "message delivery failed"}})
	}
}

func (h *WebSocketHandler) handleManage(ctx context.Context, client *wsConn, data json.RawMessage) {
	if !h.requireAdmin(ctx, client) {
		return
	}
	var p managePayload
	if !unmarshalOrReject(ctx, h.hub, client, data, &p) {
		return
	}

	if err := h.coord.Manage(p.SessionID, p.AdminID, p.Action); err != nil {
		h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: err.Error()}})
	}
}

// allowJoin rejects guest connections subscribing to the admin pool, which
// would leak other guests' hand-off requests.
func allowJoin(client *wsConn, room string) bool {
	return room != AdminRoom || client.isAdmin
}

func (h *WebSocketHandler) requireAdmin(ctx context.Context, client *wsConn) bool {
	if client.isAdmin {
		return true
	}
	h.hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "unauthorized"}})
	return false
}

func unmarshalOrReject(ctx context.Context, hub *Hub, client *wsConn, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		hub.SendTo(ctx, client, Event{Name: EventError, Payload: NoticePayload{Message: "malformed payload"}})
		return false
	}
	return true
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
