// Package assistant implements the automated chat responder.
package assistant

import "context"

// FallbackReply is returned when the upstream text-generation call fails.
// The guest is pointed at the hand-off trigger phrase instead of seeing an error.
const FallbackReply = "I'm sorry, I'm having trouble processing your request right now. " +
	"Please try again later or type 'talk to human' to speak with a human agent."

// Responder produces an automated reply to a guest message.
type Responder interface {
	// Reply returns the assistant's answer to a guest message. An error means
	// the upstream service was unavailable; callers substitute FallbackReply.
	Reply(ctx context.Context, message string) (string, error)
}
