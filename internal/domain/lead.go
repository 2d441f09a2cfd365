package domain

import "time"

// LeadSourceChat marks leads captured through the chat widget.
const LeadSourceChat = "Chat Widget"

// LeadStatusNew is the initial status for a captured lead.
const LeadStatusNew = "New"

// Lead is a sales lead captured when a guest first converses or
// requests a human. Its ID doubles as the stable chat session ID.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewChatLead builds a lead for a chat-widget contact.
func NewChatLead(name, email, message string, now time.Time) *Lead {
	return &Lead{
		Name:    name,
		Email:   email,
		Source:  LeadSourceChat,
		Date:    now.Format("2006-01-02"),
		Status:  LeadStatusNew,
		Message: message,
	}
}
