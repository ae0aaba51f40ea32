// Package notification delivers transactional emails for workflow events.
// Delivery is fire-and-forget from the domain's perspective: a failed email
// never rolls back the state transition that triggered it.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends a single plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendgridMailer delivers through the SendGrid v3 API.
type SendgridMailer struct {
	key      string
	from     *sgmail.Email
	fromName string
}

func NewSendgridMailer(apiKey, fromName, fromAddress string) *SendgridMailer {
	return &SendgridMailer{
		key:  apiKey,
		from: sgmail.NewEmail(fromName, fromAddress),
	}
}

var _ Mailer = (*SendgridMailer)(nil)

func (m *SendgridMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := sgmail.NewSingleEmail(m.from, subject, sgmail.NewEmail("", to), body, "")
	req := sendgrid.GetRequest(m.key, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)
	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleMailer logs emails instead of sending them. Used in development
// when no SendGrid key is configured.
type ConsoleMailer struct {
	log *slog.Logger
}

func NewConsoleMailer(log *slog.Logger) *ConsoleMailer {
	if log == nil {
		log = slog.Default()
	}
	return &ConsoleMailer{log: log}
}

var _ Mailer = (*ConsoleMailer)(nil)

func (m *ConsoleMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("email (console)", "to", to, "subject", subject, "body", body)
	return nil
}
