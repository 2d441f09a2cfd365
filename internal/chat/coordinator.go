package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bagstory/ecopack-server/internal/assistant"
	"github.com/bagstory/ecopack-server/internal/domain"
	"github.com/bagstory/ecopack-server/internal/notify"
	"github.com/bagstory/ecopack-server/internal/store"
	"github.com/google/uuid"
)

// Guest-visible system texts.
const (
	ackText            = "Your request has been sent to a human agent. Please wait for a response."
	suppressText       = "Message received, admin is handling the chat."
	humanConnectedText = "A human agent has joined the chat!"
	inactivityText     = "You've been disconnected due to inactivity. Type 'talk to human' to reconnect."
	noAdminsText       = "Sorry, it looks like our team is currently unavailable. Please provide your email, and we'll follow up with you soon!"
	duplicateNotice    = "User has requested to talk to a human."
)

var (
	// ErrMuted rejects a muted admin's message at the fan-out boundary.
	ErrMuted = errors.New("admin is muted for this session")
	// ErrSessionNotFound means no chat session matches the identifier.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrUnknownAction rejects an unrecognized roster management action.
	ErrUnknownAction = errors.New("unknown manage action")
)

// effectTimeout bounds the background work done when a timer fires.
const effectTimeout = 10 * time.Second

// Coordinator implements the hand-off state machine and the chat
// submission pipeline. State transitions are synchronous; outbound
// notifications are best-effort side effects that never abort them.
type Coordinator struct {
	repo      store.Repository
	hub       *Hub
	registry  *Registry
	selector  *Selector
	responder assistant.Responder
	notifier  *notify.Notifier

	graceWindow time.Duration
	idleTimeout time.Duration
}

// NewCoordinator wires the hand-off coordinator. A nil responder disables
// the assistant; guests then always receive the fallback reply.
func NewCoordinator(
	repo store.Repository,
	hub *Hub,
	registry *Registry,
	responder assistant.Responder,
	notifier *notify.Notifier,
	graceWindow, idleTimeout time.Duration,
) *Coordinator {
	return &Coordinator{
		repo:        repo,
		hub:         hub,
		registry:    registry,
		selector:    NewSelector(registry),
		responder:   responder,
		notifier:    notifier,
		graceWindow: graceWindow,
		idleTimeout: idleTimeout,
	}
}

// SubmissionRequest is one inbound guest message.
type SubmissionRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SubmissionResult is the synchronous answer to a submission.
type SubmissionResult struct {
	Reply         string `json:"message"`
	AwaitingHuman bool   `json:"awaitingHuman"`
	SessionID     string `json:"userId"`
}

// Submit runs the chat submission pipeline: load-or-create the session,
// append the guest message, select a disposition, apply its side effects,
// and fan out the resulting events. A store error aborts the remaining
// steps; nothing is fanned out for state that was never saved.
func (c *Coordinator) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	now := time.Now()

	sess, err := c.repo.GetSessionByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = &domain.ChatSession{
			SessionID: domain.NewGuestToken(now),
			Name:      req.Name,
			Email:     req.Email,
			CreatedAt: now,
		}
		if err := c.repo.UpsertSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	guestMsg := domain.Message{
		Text:      req.Message,
		Sender:    domain.SenderGuest,
		Name:      req.Name,
		Timestamp: now,
	}
	if err := c.repo.AppendMessage(ctx, sess.Email, guestMsg); err != nil {
		return nil, fmt.Errorf("append guest message: %w", err)
	}

	disposition := c.selector.Decide(sess.SessionID, req.Message)
	slog.Info("Chat submission routed",
		"session_id", sess.SessionID,
		"email", sess.Email,
		"disposition", disposition.String())

	switch disposition {
	case HandoffRequested:
		return c.handleHandoff(ctx, sess, req.Message)
	case Suppress:
		return c.handleSuppressed(ctx, sess, guestMsg)
	default:
		return c.handleAutomated(ctx, sess, req.Message)
	}
}

// handleSuppressed persists and relays the guest message to the engaged
// admins without invoking the assistant.
func (c *Coordinator) handleSuppressed(ctx context.Context, sess *domain.ChatSession, msg domain.Message) (*SubmissionResult, error) {
	sid := sess.SessionID
	c.registry.Touch(sid, c.idleTimeout, func() { c.idleExpired(sid) })

	c.hub.Broadcast(ctx, sid, Event{Name: EventMessage, Payload: MessagePayload{
		SessionID: sid,
		Text:      msg.Text,
		Sender:    string(msg.Sender),
		Name:      msg.Name,
		Timestamp: msg.Timestamp,
	}})

	return &SubmissionResult{Reply: suppressText, AwaitingHuman: false, SessionID: sid}, nil
}

// handleAutomated ensures a lead exists for first contact, asks the
// assistant for a reply (or falls back), persists it, and fans it out.
func (c *Coordinator) handleAutomated(ctx context.Context, sess *domain.ChatSession, message string) (*SubmissionResult, error) {
	if err := c.promoteSession(ctx, sess, message); err != nil {
		return nil, err
	}

	reply := assistant.FallbackReply
	if c.responder != nil {
		text, err := c.responder.Reply(ctx, message)
		if err != nil {
			slog.Warn("Assistant unavailable, using fallback reply",
				"session_id", sess.SessionID, "error", err)
		} else {
			reply = text
		}
	}

	now := time.Now()
	botMsg := domain.Message{
		Text:      reply,
		Sender:    domain.SenderAssistant,
		Name:      domain.AssistantName,
		Timestamp: now,
	}
	if err := c.repo.AppendMessage(ctx, sess.Email, botMsg); err != nil {
		return nil, fmt.Errorf("append assistant reply: %w", err)
	}

	payload := MessagePayload{
		SessionID: sess.SessionID,
		Text:      reply,
		Sender:    string(domain.SenderAssistant),
		Name:      domain.AssistantName,
		Timestamp: now,
	}
	c.hub.Broadcast(ctx, sess.SessionID, Event{Name: EventMessage, Payload: payload})
	c.hub.Broadcast(ctx, AdminRoom, Event{Name: EventMessage, Payload: payload})
	c.hub.Broadcast(ctx, AdminRoom, Event{Name: EventNewChat, Payload: NewChatPayload{
		SessionID: sess.SessionID,
		Name:      sess.Name,
		Email:     sess.Email,
	}})

	return &SubmissionResult{Reply: reply, AwaitingHuman: false, SessionID: sess.SessionID}, nil
}

// handleHandoff runs the Idle -> AwaitingHuman transition (or the
// idempotent repeat path) for a trigger-phrase message.
func (c *Coordinator) handleHandoff(ctx context.Context, sess *domain.ChatSession, message string) (*SubmissionResult, error) {
	if err := c.promoteSession(ctx, sess, "Requested to talk to a human"); err != nil {
		return nil, err
	}
	sid := sess.SessionID

	entered := c.registry.RequestHuman(sid)

	var adminEvent Event
	if !sess.NotifiedHandoff {
		c.notifier.EmailAdmins(ctx,
			"Chat Request: User Wants to Speak with a Human",
			fmt.Sprintf("User %s (%s) has requested to speak with a human. Message: %s",
				sess.Name, sess.Email, message))
		c.notifier.TextAdmins(ctx,
			fmt.Sprintf("Chat Request\nUser: %s (%s)\nMessage: %s\nSession: %s",
				sess.Name, sess.Email, message, sid))

		if err := c.repo.SetHandoffNotified(ctx, sess.Email, true); err != nil {
			return nil, fmt.Errorf("mark handoff notified: %w", err)
		}
		sess.NotifiedHandoff = true

		adminEvent = Event{Name: EventChatRequest, Payload: RequestPayload{
			SessionID: sid,
			Name:      sess.Name,
			Email:     sess.Email,
			Message:   message,
		}}
	} else {
		adminEvent = Event{Name: EventChatNotification, Payload: RequestPayload{
			SessionID: sid,
			Name:      sess.Name,
			Email:     sess.Email,
			Message:   duplicateNotice,
		}}
	}

	now := time.Now()
	ack := domain.Message{
		Text:      ackText,
		Sender:    domain.SenderAssistant,
		Name:      domain.AssistantName,
		Timestamp: now,
	}
	if err := c.repo.AppendMessage(ctx, sess.Email, ack); err != nil {
		return nil, fmt.Errorf("append handoff ack: %w", err)
	}

	c.hub.Broadcast(ctx, sid, Event{Name: EventMessage, Payload: MessagePayload{
		SessionID: sid,
		Text:      ackText,
		Sender:    string(domain.SenderAssistant),
		Name:      domain.AssistantName,
		Timestamp: now,
	}})
	c.hub.Broadcast(ctx, AdminRoom, adminEvent)

	if entered {
		name, email := sess.Name, sess.Email
		c.registry.StartGrace(sid, c.graceWindow, func() {
			c.graceExpired(sid, name, email)
		})
	}

	return &SubmissionResult{Reply: ackText, AwaitingHuman: true, SessionID: sid}, nil
}

// promoteSession makes sure a lead exists for the contact and that the
// session carries the lead's ID as its stable identifier.
func (c *Coordinator) promoteSession(ctx context.Context, sess *domain.ChatSession, leadMessage string) error {
	lead, err := c.repo.GetLeadByEmail(ctx, sess.Email)
	if err != nil {
		return fmt.Errorf("lookup lead: %w", err)
	}
	if lead == nil {
		lead = domain.NewChatLead(sess.Name, sess.Email, leadMessage, time.Now())
		lead.ID = uuid.NewString()
		if err := c.repo.CreateLead(ctx, lead); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}
		slog.Info("Lead created from chat", "lead_id", lead.ID, "email", sess.Email)
	}

	if sess.SessionID != lead.ID {
		if err := c.repo.SetSessionID(ctx, sess.Email, lead.ID); err != nil {
			return fmt.Errorf("promote session id: %w", err)
		}
		sess.SessionID = lead.ID
	}
	return nil
}

// RequestHandoff runs the hand-off path for an existing session without a
// new guest message (the widget's talk-to-human button).
func (c *Coordinator) RequestHandoff(ctx context.Context, sessionID string) error {
	sess, err := c.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	_, err = c.handleHandoff(ctx, sess, "Requested to talk to a human")
	return err
}

// GuestMessage persists and relays a guest message arriving over the
// realtime channel (an engaged chat). The assistant is never involved.
func (c *Coordinator) GuestMessage(ctx context.Context, sessionID, name, text string) error {
	sess, err := c.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	now := time.Now()
	msg := domain.Message{
		Text:      text,
		Sender:    domain.SenderGuest,
		Name:      name,
		Timestamp: now,
	}
	if err := c.repo.AppendMessage(ctx, sess.Email, msg); err != nil {
		return fmt.Errorf("append guest message: %w", err)
	}

	c.registry.Touch(sessionID, c.idleTimeout, func() { c.idleExpired(sessionID) })

	c.hub.Broadcast(ctx, sessionID, Event{Name: EventMessage, Payload: MessagePayload{
		SessionID: sessionID,
		Text:      text,
		Sender:    string(domain.SenderGuest),
		Name:      name,
		Timestamp: now,
	}})
	return nil
}

// Accept transitions a session to Engaged for the accepting admin,
// cancels the grace timer, and starts the inactivity window. The
// human-connected notice reaches only the guest's channel; the ws layer
// joins the admin to the session room after this returns.
func (c *Coordinator) Accept(ctx context.Context, sessionID, adminID string) {
	c.registry.Accept(sessionID, adminID, c.idleTimeout, func() { c.idleExpired(sessionID) })
	c.hub.Broadcast(ctx, sessionID, Event{
		Name:    EventHumanConnected,
		Payload: NoticePayload{Message: humanConnectedText},
	})
}

// AdminMessage persists and relays an admin reply. A muted admin gets
// ErrMuted and nothing is persisted or relayed.
func (c *Coordinator) AdminMessage(ctx context.Context, sessionID, adminID, senderLabel, text string) error {
	if c.registry.IsMuted(sessionID, adminID) {
		return ErrMuted
	}

	sess, err := c.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	now := time.Now()
	msg := domain.Message{
		Text:      text,
		Sender:    domain.SenderAdmin,
		Name:      senderLabel,
		Timestamp: now,
	}
	if err := c.repo.AppendMessage(ctx, sess.Email, msg); err != nil {
		return fmt.Errorf("append admin message: %w", err)
	}

	c.registry.Touch(sessionID, c.idleTimeout, func() { c.idleExpired(sessionID) })

	c.hub.Broadcast(ctx, sessionID, Event{Name: EventMessage, Payload: MessagePayload{
		SessionID: sessionID,
		Text:      text,
		Sender:    string(domain.SenderAdmin),
		Name:      senderLabel,
		Timestamp: now,
	}})
	return nil
}

// Manage applies a roster action (mute, unmute, remove) without changing
// the session's hand-off state.
func (c *Coordinator) Manage(sessionID, adminID, action string) error {
	switch action {
	case "mute":
		c.registry.SetMuted(sessionID, adminID, true)
	case "unmute":
		c.registry.SetMuted(sessionID, adminID, false)
	case "remove":
		c.registry.RemoveAdmin(sessionID, adminID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return nil
}

// graceExpired is the no-admin-available fallback. The registry has
// already verified the session was still AwaitingHuman at fire time.
func (c *Coordinator) graceExpired(sessionID, name, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	c.hub.Broadcast(ctx, sessionID, Event{
		Name:    EventNoAdmins,
		Payload: NoticePayload{Message: noAdminsText},
	})

	// Make sure a lead exists for the follow-up, even if the request path
	// that scheduled this timer did not leave one behind.
	lead, err := c.repo.GetLeadByEmail(ctx, email)
	switch {
	case err != nil:
		slog.Error("Failed to verify lead after missed handoff", "email", email, "error", err)
	case lead == nil:
		lead = domain.NewChatLead(name, email, "Requested to talk to a human", time.Now())
		lead.ID = uuid.NewString()
		if err := c.repo.CreateLead(ctx, lead); err != nil {
			slog.Error("Failed to create lead after missed handoff", "email", email, "error", err)
		}
	}

	c.notifier.EmailAdmins(ctx,
		"Missed Chat Request: No Staff Available",
		fmt.Sprintf("No admin accepted the chat request from %s (%s) within the grace window. Please follow up.", name, email))

	// Allow the next distinct request to notify again.
	if err := c.repo.SetHandoffNotified(ctx, email, false); err != nil {
		slog.Error("Failed to reset handoff flag", "email", email, "error", err)
	}
}

// idleExpired ends an engagement after the inactivity window elapses. The
// registry has already removed the presence entry.
func (c *Coordinator) idleExpired(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	c.hub.Broadcast(ctx, sessionID, Event{
		Name:    EventInactivityDisconnect,
		Payload: NoticePayload{Message: inactivityText},
	})

	sess, err := c.repo.GetSessionByID(ctx, sessionID)
	if err != nil || sess == nil {
		slog.Warn("Could not reset handoff flag after inactivity", "session_id", sessionID, "error", err)
		return
	}
	if err := c.repo.SetHandoffNotified(ctx, sess.Email, false); err != nil {
		slog.Error("Failed to reset handoff flag", "email", sess.Email, "error", err)
	}
}

// Reset drops all in-memory presence state and cancels pending timers.
// Called when the stored chat history is bulk-cleared.
func (c *Coordinator) Reset() {
	c.registry.ClearAll()
}
