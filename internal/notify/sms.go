package notify

import (
	"context"
	"fmt"

	"github.com/bagstory/ecopack-server/internal/config"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioTexter implements Texter using the Twilio messaging API.
type TwilioTexter struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioTexter creates a Twilio-backed SMS sender from SMS configuration.
func NewTwilioTexter(cfg config.SMSConfig) *TwilioTexter {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioTexter{
		client: client,
		from:   cfg.From,
	}
}

// Send delivers an SMS to a single phone number.
func (t *TwilioTexter) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}
	return nil
}
