// Package mail sends transactional email through SendGrid.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/econbrief/econbrief/internal/config"
	"github.com/econbrief/econbrief/internal/retry"
)

const (
	defaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var _ Sender = (*SendGridMailer)(nil)

// SendGridMailer sends mail with the SendGrid v3 API.
type SendGridMailer struct {
	apiKey string
	from   string
	host   string
}

// NewSendGridMailer creates a mailer. Missing settings surface as a
// *config.MissingError on Send.
func NewSendGridMailer(cfg config.MailConfig) *SendGridMailer {
	return &SendGridMailer{
		apiKey: cfg.SendGridAPIKey,
		from:   cfg.From,
		host:   defaultHost,
	}
}

// Send delivers msg. Non-2xx responses are errors; client errors other
// than rate limiting are permanent.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := config.Require("SENDGRID_API_KEY", m.apiKey, "MAIL_FROM", m.from); err != nil {
		return retry.Permanent(err)
	}

	message := sgmail.NewSingleEmail(
		sgmail.NewEmail("", m.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		"",
	)

	request := sendgrid.GetRequest(m.apiKey, sendEndpoint, m.host)
	request.Method = http.MethodPost
	request.Body = sgmail.GetRequestBody(message)

	slog.Debug("sending mail", "to", msg.To, "subject", msg.Subject)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid: sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, strings.TrimSpace(resp.Body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}
	return nil
}
