// Package chat implements the real-time chat hand-off subsystem: the
// fan-out hub, presence registry, responder selection, and the hand-off
// coordinator state machine.
package chat

import "time"

// Event names delivered over the realtime channel.
const (
	// EventMessage carries a chat message (guest, assistant, or admin reply).
	EventMessage = "message"
	// EventChatRequest advertises a new hand-off request to the admin pool.
	EventChatRequest = "chat-request"
	// EventChatNotification is the lightweight duplicate-request notice.
	EventChatNotification = "chat-notification"
	// EventNewChat advertises a newly active guest conversation to admins.
	EventNewChat = "new-chat"
	// EventHumanConnected tells the guest a human agent joined.
	EventHumanConnected = "human-connected"
	// EventInactivityDisconnect tells the guest the engagement timed out.
	EventInactivityDisconnect = "inactivity-disconnect"
	// EventNoAdmins tells the guest no staff were available.
	EventNoAdmins = "no-admins"
	// EventMessageBlocked rejects a muted admin's message attempt.
	EventMessageBlocked = "message-blocked"
	// EventError reports a rejected inbound event to its sender.
	EventError = "error"
)

// Inbound event names (client to server).
const (
	eventAdminLogin   = "admin-login"
	eventJoinRoom     = "join-room"
	eventLeaveRoom    = "leave-room"
	eventRequestHuman = "request-human"
	eventUserMessage  = "user-message"
	eventAcceptChat   = "accept-chat"
	eventAdminSend    = "admin-message"
	eventAdminManage  = "admin-manage"
)

// Event is one realtime event with its payload.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data,omitempty"`
}

// MessagePayload is the body of an EventMessage.
type MessagePayload struct {
	SessionID string    `json:"userId"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestPayload is the body of EventChatRequest and EventChatNotification.
type RequestPayload struct {
	SessionID string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message,omitempty"`
}

// NewChatPayload advertises a conversation to the admin pool.
type NewChatPayload struct {
	SessionID string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// NoticePayload carries a guest-facing system notice.
type NoticePayload struct {
	Message string `json:"message"`
}

// BlockedPayload explains a rejected admin message.
type BlockedPayload struct {
	Reason string `json:"reason"`
}
