package chat

import "strings"

// TriggerPhrase requests a human hand-off. Matched case-insensitively as a
// substring; the trigger takes precedence over the automated reply path.
const TriggerPhrase = "talk to human"

// Disposition is the routing decision for one inbound guest message.
type Disposition int

const (
	// AutomatedReply invokes the assistant (default path).
	AutomatedReply Disposition = iota
	// Suppress persists and relays the message without any automated
	// action; a human is already engaged.
	Suppress
	// HandoffRequested routes the message to the hand-off coordinator.
	HandoffRequested
)

func (d Disposition) String() string {
	switch d {
	case Suppress:
		return "suppress"
	case HandoffRequested:
		return "handoff-requested"
	default:
		return "automated-reply"
	}
}

// Selector decides how each inbound guest message is answered.
type Selector struct {
	registry *Registry
}

// NewSelector creates a selector backed by the presence registry.
func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// Decide returns the disposition for a guest message. The trigger phrase
// always wins; otherwise an engaged session suppresses the assistant.
func (s *Selector) Decide(sessionID, message string) Disposition {
	if strings.Contains(strings.ToLower(message), TriggerPhrase) {
		return HandoffRequested
	}
	if s.registry.IsEngaged(sessionID) {
		return Suppress
	}
	return AutomatedReply
}
