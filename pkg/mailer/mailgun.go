package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Mailgun wraps Mailgun client configuration.
type Mailgun struct {
	Domain string
	APIKey string
	Sender string

	client *mg.MailgunImpl
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender, client: mg.NewMailgun(domain, apiKey)}
}

// Send sends an email via Mailgun. html is optional; if provided it will be used as HTML body.
// The caller's context bounds the request.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	if m.client == nil {
		return errors.New("mailgun not configured")
	}
	msg := m.client.NewMessage(m.Sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	_, _, err := m.client.Send(ctx, msg)
	return classify(err)
}

// classify marks 4xx rejections other than throttling as permanent.
func classify(err error) error {
	var ure *mg.UnexpectedResponseError
	if errors.As(err, &ure) && ure.Actual >= 400 && ure.Actual < 500 && ure.Actual != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	return err
}

// Deliver sends an HTML body directly, without the queue.
func (m *Mailgun) Deliver(ctx context.Context, to, subject, body string) error {
	return m.Send(ctx, to, subject, "", body)
}
