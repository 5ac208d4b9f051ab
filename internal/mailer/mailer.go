// Package mailer composes contact notifications and relays them through an
// outbound mail transport, falling back to a backup recipient once.
package mailer

import (
	"context"
	"errors"
)

var (
	// ErrDeliveryFailed is returned when no delivery attempt succeeded
	ErrDeliveryFailed = errors.New("mail delivery failed")
	// ErrNoRecipient is returned when a message has no To address
	ErrNoRecipient = errors.New("no recipient specified")
	// ErrEmptyBody is returned when a message has neither text nor HTML body
	ErrEmptyBody = errors.New("message body is empty")
)

// Message is a structured mail message handed to a Transport.
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}

// WithRecipient returns a copy of m addressed to to.
func (m Message) WithRecipient(to string) Message {
	m.To = to
	return m
}

// Validate checks the fields every transport requires.
func (m Message) Validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return ErrEmptyBody
	}
	return nil
}

// Transport sends a single message. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
