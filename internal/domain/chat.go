// Package domain contains core domain types for the Eco Packaging backend.
package domain

import (
	"strconv"
	"time"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	// SenderGuest is a message typed by the website visitor.
	SenderGuest Sender = "user"
	// SenderAssistant is an automated reply from the assistant.
	SenderAssistant Sender = "bot"
	// SenderAdmin is a reply from a human agent.
	SenderAdmin Sender = "admin"
)

// AssistantName is the display label used for automated replies.
const AssistantName = "EcoBuddy"

// Message is a single entry in a chat session's append-only log.
type Message struct {
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is one guest's conversation, keyed by contact email.
// SessionID starts as a timestamp-derived guest token and is replaced
// by the lead ID once a lead record exists for the contact.
type ChatSession struct {
	SessionID       string    `json:"userId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Messages        []Message `json:"messages"`
	NotifiedHandoff bool      `json:"smsNotified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewGuestToken returns the provisional session identifier used before
// the guest has a lead record.
func NewGuestToken(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}
