// Package notify provides outbound notification gateways (email, SMS).
// Deliveries are best-effort: failures are logged at the point of call and
// never abort the chat transition that triggered them.
package notify

import (
	"context"
	"log/slog"
)

// Mailer sends a plain-text email to one or more recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Texter sends an SMS to a single phone number.
type Texter interface {
	Send(ctx context.Context, to, body string) error
}

// Notifier fans notifications out to the configured admin distribution
// lists. A nil Mailer or Texter disables that channel.
type Notifier struct {
	mailer      Mailer
	texter      Texter
	adminEmail  string
	adminPhones []string
}

// NewNotifier creates a Notifier for the admin distribution lists.
func NewNotifier(mailer Mailer, texter Texter, adminEmail string, adminPhones []string) *Notifier {
	return &Notifier{
		mailer:      mailer,
		texter:      texter,
		adminEmail:  adminEmail,
		adminPhones: adminPhones,
	}
}

// EmailAdmins sends an email to the admin address. Errors are logged, not
// returned; the caller must not depend on delivery.
func (n *Notifier) EmailAdmins(ctx context.Context, subject, body string) {
	if n.mailer == nil || n.adminEmail == "" {
		slog.Debug("Email notifications disabled, skipping", "subject", subject)
		return
	}
	if err := n.mailer.Send(ctx, []string{n.adminEmail}, subject, body); err != nil {
		slog.Error("Failed to send admin email", "subject", subject, "error", err)
	}
}

// TextAdmins sends an SMS to every configured admin phone number. A failure
// for one number does not stop delivery to the rest.
func (n *Notifier) TextAdmins(ctx context.Context, body string) {
	if n.texter == nil || len(n.adminPhones) == 0 {
		slog.Debug("SMS notifications disabled, skipping")
		return
	}
	for _, phone := range n.adminPhones {
		if err := n.texter.Send(ctx, phone, body); err != nil {
			slog.Error("Failed to send admin SMS", "phone", phone, "error", err)
		}
	}
}
