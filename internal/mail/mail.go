// Package mail sends the newsletter welcome message.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

// Mailer delivers one message to one recipient.
type Mailer interface {
	SendWelcome(ctx context.Context, to string) error
}

const (
	welcomeSubject = "Welcome to the CodeCraft newsletter"
	welcomeText    = "Thanks for subscribing! You'll hear from us when new templates and features land.\n\n" +
		"If this wasn't you, you can unsubscribe at any time."
)

// Mailjet sends mail through the Mailjet v3.1 send API.
type Mailjet struct {
	client *mailjet.Client
	sender string
	name   string
}

// NewMailjet returns a Mailjet mailer using the given API key pair.
func NewMailjet(publicKey, privateKey, sender, senderName string) *Mailjet {
	return &Mailjet{
		client: mailjet.NewMailjetClient(publicKey, privateKey),
		sender: sender,
		name:   senderName,
	}
}

func (m *Mailjet) SendWelcome(ctx context.Context, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: m.sender, Name: m.name},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: to}},
		Subject:  welcomeSubject,
		TextPart: welcomeText,
	}}
	if _, err := m.client.SendMailV31(&mailjet.MessagesV31{Info: info}); err != nil {
		return fmt.Errorf("mail: sending welcome to %s: %w", to, err)
	}
	return nil
}

// Noop logs instead of sending. Used when no Mailjet keys are configured.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) SendWelcome(_ context.Context, to string) error {
	if n.Logger != nil {
		n.Logger.Debug("mail disabled, skipping welcome message", slog.String("to", to))
	}
	return nil
}
