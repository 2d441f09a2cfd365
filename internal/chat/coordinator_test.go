package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bagstory/ecopack-server/internal/assistant"
	"github.com/bagstory/ecopack-server/internal/domain"
	"github.com/bagstory/ecopack-server/internal/notify"
)

// memRepo is an in-memory store.Repository for coordinator tests.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChatSession
	leads    map[string]*domain.Lead
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions: make(map[string]*domain.ChatSession),
		leads:    make(map[string]*domain.Lead),
	}
}

func (m *memRepo) GetSessionByEmail(_ context.Context, email string) (*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[email]
	if !ok {
		return nil, nil
	}
	cp := *sess
	cp.Messages = append([]domain.Message(nil), sess.Messages...)
	return &cp, nil
}

func (m *memRepo) GetSessionByID(_ context.Context, sessionID string) (*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.SessionID == sessionID {
			cp := *sess
			cp.Messages = append([]domain.Message(nil), sess.Messages...)
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) UpsertSession(_ context.Context, sess *domain.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions[sess.Email] = &cp
	return nil
}

func (m *memRepo) AppendMessage(_ context.Context, email string, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[email]
	if !ok {
		return errors.New("no session for " + email)
	}
	sess.Messages = append(sess.Messages, msg)
	return nil
}

func (m *memRepo) SetSessionID(_ context.Context, email, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[email]; ok {
		sess.SessionID = sessionID
	}
	return nil
}

func (m *memRepo) SetHandoffNotified(_ context.Context, email string, notified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[email]; ok {
		sess.NotifiedHandoff = notified
	}
	return nil
}

func (m *memRepo) UpdateSessionEmail(_ context.Context, oldEmail, newEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[oldEmail]
	if !ok {
		return errors.New("no session")
	}
	delete(m.sessions, oldEmail)
	sess.Email = newEmail
	m.sessions[newEmail] = sess
	return nil
}

func (m *memRepo) ListSessions(_ context.Context) ([]*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ChatSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) ClearSessions(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.sessions))
	m.sessions = make(map[string]*domain.ChatSession)
	return n, nil
}

func (m *memRepo) GetLeadByEmail(_ context.Context, email string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[email]
	if !ok {
		return nil, nil
	}
	cp := *lead
	return &cp, nil
}

func (m *memRepo) CreateLead(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *lead
	m.leads[lead.Email] = &cp
	return nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

func (m *memRepo) handoffNotified(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[email]; ok {
		return sess.NotifiedHandoff
	}
	return false
}

func (m *memRepo) messageCount(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[email]; ok {
		return len(sess.Messages)
	}
	return 0
}

// fakeMailer records sent subjects.
type fakeMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeMailer) Send(_ context.Context, _ []string, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeMailer) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

// fakeResponder returns a canned reply and counts invocations.
type fakeResponder struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeResponder) Reply(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeResponder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type coordFixture struct {
	repo      *memRepo
	hub       *Hub
	registry  *Registry
	responder *fakeResponder
	mailer    *fakeMailer
	coord     *Coordinator
}

func newCoordFixture(grace, idle time.Duration) *coordFixture {
	f := &coordFixture{
		repo:      newMemRepo(),
		hub:       NewHub(),
		registry:  NewRegistry(),
		responder: &fakeResponder{reply: "We offer custom printed bags."},
		mailer:    &fakeMailer{},
	}
	notifier := notify.NewNotifier(f.mailer, nil, "admin@ecopackaging.test", nil)
	f.coord = NewCoordinator(f.repo, f.hub, f.registry, f.responder, notifier, grace, idle)
	return f
}

func submission(msg string) SubmissionRequest {
	return SubmissionRequest{Name: "Dana", Email: "dana@example.com", Message: msg}
}

func TestSubmitAutomatedReply(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	admin := &fakeConn{}
	f.hub.Join(AdminRoom, admin)

	result, err := f.coord.Submit(ctx, submission("Do you sell mesh bags?"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Reply != "We offer custom printed bags." {
		t.Errorf("reply = %q, want responder reply", result.Reply)
	}
	if result.AwaitingHuman {
		t.Error("automated reply should not set awaitingHuman")
	}
	if result.SessionID == "" {
		t.Fatal("result missing session id")
	}

	// Guest message plus assistant reply persisted in order.
	sess, _ := f.repo.GetSessionByEmail(ctx, "dana@example.com")
	if sess == nil || len(sess.Messages) != 2 {
		t.Fatalf("persisted messages = %v, want 2", sess)
	}
	if sess.Messages[0].Sender != domain.SenderGuest || sess.Messages[1].Sender != domain.SenderAssistant {
		t.Errorf("message order wrong: %s then %s", sess.Messages[0].Sender, sess.Messages[1].Sender)
	}

	// A lead is created and its id becomes the stable session id.
	lead, _ := f.repo.GetLeadByEmail(ctx, "dana@example.com")
	if lead == nil {
		t.Fatal("no lead created")
	}
	if sess.SessionID != lead.ID {
		t.Errorf("session id %q not promoted to lead id %q", sess.SessionID, lead.ID)
	}

	// Admin pool sees the conversation.
	if admin.countEvent(EventNewChat) != 1 {
		t.Errorf("admin new-chat events = %d, want 1", admin.countEvent(EventNewChat))
	}
}

func TestSubmitFallbackWhenResponderFails(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	f.responder.err = errors.New("upstream down")
	f.responder.reply = ""

	result, err := f.coord.Submit(context.Background(), submission("hello"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Reply != assistant.FallbackReply {
		t.Errorf("reply = %q, want fallback", result.Reply)
	}
}

func TestHandoffNotifiesOnce(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	admin := &fakeConn{}
	f.hub.Join(AdminRoom, admin)

	first, err := f.coord.Submit(ctx, submission("I want to talk to human"))
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if !first.AwaitingHuman {
		t.Error("first hand-off should set awaitingHuman")
	}
	if got := len(f.mailer.sent()); got != 1 {
		t.Fatalf("emails after first request = %d, want 1", got)
	}
	if admin.countEvent(EventChatRequest) != 1 {
		t.Errorf("chat-request events = %d, want 1", admin.countEvent(EventChatRequest))
	}
	if !f.repo.handoffNotified("dana@example.com") {
		t.Error("notified flag not set after first request")
	}

	// Repeat request: no second email, lightweight notification instead.
	second, err := f.coord.Submit(ctx, submission("talk to human!!"))
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !second.AwaitingHuman {
		t.Error("repeat hand-off should still report awaitingHuman")
	}
	if got := len(f.mailer.sent()); got != 1 {
		t.Errorf("emails after repeat request = %d, want still 1", got)
	}
	if admin.countEvent(EventChatNotification) != 1 {
		t.Errorf("chat-notification events = %d, want 1", admin.countEvent(EventChatNotification))
	}
	if f.responder.callCount() != 0 {
		t.Errorf("responder called %d times during hand-off, want 0", f.responder.callCount())
	}
}

func TestGraceWindowFallback(t *testing.T) {
	f := newCoordFixture(30*time.Millisecond, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	guest := &fakeConn{}
	f.hub.Join(result.SessionID, guest)

	deadline := time.After(time.Second)
	for guest.countEvent(EventNoAdmins) == 0 {
		select {
		case <-deadline:
			t.Fatal("no-admins notice never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := f.registry.StateOf(result.SessionID); got != StateIdle {
		t.Errorf("state after grace expiry = %s, want idle", got)
	}
	// The flag resets so the next distinct request notifies again.
	if f.repo.handoffNotified("dana@example.com") {
		t.Error("notified flag still set after missed hand-off")
	}

	subjects := f.mailer.sent()
	if len(subjects) != 2 {
		t.Fatalf("emails = %v, want request + missed-request", subjects)
	}
	if !strings.Contains(subjects[1], "Missed Chat Request") {
		t.Errorf("second email subject = %q, want missed-request alert", subjects[1])
	}
}

func TestGraceExpiryRecreatesMissingLead(t *testing.T) {
	f := newCoordFixture(30*time.Millisecond, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Drop the lead the hand-off created; expiry must restore it so the
	// missed-request follow-up has a record to act on.
	f.repo.mu.Lock()
	delete(f.repo.leads, "dana@example.com")
	f.repo.mu.Unlock()

	guest := &fakeConn{}
	f.hub.Join(result.SessionID, guest)

	deadline := time.After(time.Second)
	for guest.countEvent(EventNoAdmins) == 0 {
		select {
		case <-deadline:
			t.Fatal("no-admins notice never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	lead, err := f.repo.GetLeadByEmail(ctx, "dana@example.com")
	if err != nil {
		t.Fatalf("GetLeadByEmail: %v", err)
	}
	if lead == nil {
		t.Fatal("lead not recreated after missed hand-off")
	}
	if lead.ID == "" || lead.Source != "Chat Widget" {
		t.Errorf("recreated lead = %+v", lead)
	}
}

func TestAcceptScopesHumanConnected(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	guest := &fakeConn{}
	admin := &fakeConn{}
	f.hub.Join(result.SessionID, guest)
	f.hub.Join(AdminRoom, admin)

	f.coord.Accept(ctx, result.SessionID, "admin-1")

	if guest.countEvent(EventHumanConnected) != 1 {
		t.Errorf("guest human-connected events = %d, want 1", guest.countEvent(EventHumanConnected))
	}
	if admin.countEvent(EventHumanConnected) != 0 {
		t.Errorf("admin pool received human-connected, want guest-only delivery")
	}
	if !f.registry.IsEngaged(result.SessionID) {
		t.Error("session not engaged after accept")
	}
}

func TestSuppressionWhileEngaged(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.coord.Accept(ctx, result.SessionID, "admin-1")

	admin := &fakeConn{}
	f.hub.Join(result.SessionID, admin)

	before := f.repo.messageCount("dana@example.com")
	suppressed, err := f.coord.Submit(ctx, submission("are you still there?"))
	if err != nil {
		t.Fatalf("Submit while engaged: %v", err)
	}

	if suppressed.Reply != suppressText {
		t.Errorf("reply = %q, want suppression text", suppressed.Reply)
	}
	if f.responder.callCount() != 0 {
		t.Errorf("responder called %d times while engaged, want 0", f.responder.callCount())
	}
	// Guest message is still persisted and relayed to the session room.
	if got := f.repo.messageCount("dana@example.com"); got != before+1 {
		t.Errorf("messages = %d, want %d", got, before+1)
	}
	if admin.countEvent(EventMessage) != 1 {
		t.Errorf("relayed message events = %d, want 1", admin.countEvent(EventMessage))
	}
}

func TestAdminMessageMuted(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.coord.Accept(ctx, result.SessionID, "admin-1")

	if err := f.coord.Manage(result.SessionID, "admin-1", "mute"); err != nil {
		t.Fatalf("Manage mute: %v", err)
	}

	before := f.repo.messageCount("dana@example.com")
	err = f.coord.AdminMessage(ctx, result.SessionID, "admin-1", "Support", "hello")
	if !errors.Is(err, ErrMuted) {
		t.Fatalf("AdminMessage err = %v, want ErrMuted", err)
	}
	if got := f.repo.messageCount("dana@example.com"); got != before {
		t.Errorf("muted admin message persisted, messages = %d want %d", got, before)
	}

	if err := f.coord.Manage(result.SessionID, "admin-1", "unmute"); err != nil {
		t.Fatalf("Manage unmute: %v", err)
	}
	if err := f.coord.AdminMessage(ctx, result.SessionID, "admin-1", "Support", "hello"); err != nil {
		t.Fatalf("AdminMessage after unmute: %v", err)
	}
}

func TestManageUnknownAction(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	if err := f.coord.Manage("s1", "admin-1", "banish"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}

func TestAdminMessageUnknownSession(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	err := f.coord.AdminMessage(context.Background(), "ghost", "admin-1", "Support", "hi")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRequestHandoffBySessionID(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("hi, what do you sell?"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	before := f.repo.messageCount("dana@example.com")
	if err := f.coord.RequestHandoff(ctx, result.SessionID); err != nil {
		t.Fatalf("RequestHandoff: %v", err)
	}

	if got := f.registry.StateOf(result.SessionID); got != StateAwaitingHuman {
		t.Errorf("state = %s, want awaiting-human", got)
	}
	if got := len(f.mailer.sent()); got != 1 {
		t.Errorf("emails = %d, want 1", got)
	}
	// Only the acknowledgement is appended, no synthetic guest message.
	if got := f.repo.messageCount("dana@example.com"); got != before+1 {
		t.Errorf("messages = %d, want %d", got, before+1)
	}

	if err := f.coord.RequestHandoff(ctx, "ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err for unknown session = %v, want ErrSessionNotFound", err)
	}
}

func TestGuestMessageRelay(t *testing.T) {
	f := newCoordFixture(time.Minute, time.Minute)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.coord.Accept(ctx, result.SessionID, "admin-1")

	admin := &fakeConn{}
	f.hub.Join(result.SessionID, admin)

	before := f.repo.messageCount("dana@example.com")
	if err := f.coord.GuestMessage(ctx, result.SessionID, "Dana", "still here"); err != nil {
		t.Fatalf("GuestMessage: %v", err)
	}

	if got := f.repo.messageCount("dana@example.com"); got != before+1 {
		t.Errorf("messages = %d, want %d", got, before+1)
	}
	if admin.countEvent(EventMessage) != 1 {
		t.Errorf("relayed events = %d, want 1", admin.countEvent(EventMessage))
	}
	if f.responder.callCount() != 0 {
		t.Errorf("responder called %d times, want 0", f.responder.callCount())
	}

	if err := f.coord.GuestMessage(ctx, "ghost", "X", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err for unknown session = %v, want ErrSessionNotFound", err)
	}
}

func TestInactivityEndsEngagement(t *testing.T) {
	f := newCoordFixture(time.Minute, 30*time.Millisecond)
	ctx := context.Background()

	result, err := f.coord.Submit(ctx, submission("talk to human"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	guest := &fakeConn{}
	f.hub.Join(result.SessionID, guest)

	f.coord.Accept(ctx, result.SessionID, "admin-1")

	deadline := time.After(time.Second)
	for guest.countEvent(EventInactivityDisconnect) == 0 {
		select {
		case <-deadline:
			t.Fatal("inactivity notice never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if f.registry.IsEngaged(result.SessionID) {
		t.Error("session still engaged after inactivity")
	}
	// Flag resets so a later request can notify again.
	if f.repo.handoffNotified("dana@example.com") {
		t.Error("notified flag still set after inactivity disconnect")
	}
}
