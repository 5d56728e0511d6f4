// Package email sends transactional mail through Resend.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/resend/resend-go/v2"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Client is the Resend-backed Sender.
type Client struct {
	emails        emailsAPI
	from          string
	subjectPrefix string
}

// New builds a Resend client. It fails with a configuration error when no API key is set.
func New(cfg config.EmailConfig) (*Client, error) {
	if !cfg.Configured() {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "email delivery is not configured").
			WithDetails(map[string]string{"hint": "set STUDYHUB_RESEND_API_KEY"})
	}
	return newWithAPI(resend.NewClient(cfg.ResendAPIKey).Emails, cfg), nil
}

func newWithAPI(api emailsAPI, cfg config.EmailConfig) *Client {
	return &Client{
		emails:        api,
		from:          cfg.From,
		subjectPrefix: strings.TrimSpace(cfg.Subject),
	}
}

// Send delivers msg.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}

	subject := msg.Subject
	if c.subjectPrefix != "" {
		subject = c.subjectPrefix + " " + subject
	}

	resp, err := c.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("sending email to %s", to))
	}
	if resp == nil {
		return "", nil
	}
	return resp.Id, nil
}
