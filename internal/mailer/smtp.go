package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/contact-relay/internal/config"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// FromAddress is the envelope and header sender
	FromAddress string
	// FromName is the sender display name (optional)
	FromName string

	// Timeout bounds dialing and each SMTP command
	Timeout time.Duration
}

// SMTPTransport sends messages through an authenticated SMTP server. Port 465
// uses implicit TLS; any other port upgrades with STARTTLS when offered.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport creates a transport for cfg.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

// NewTransportFromConfig builds the SMTP transport for m. It returns nil when
// the mail settings are incomplete.
func NewTransportFromConfig(m config.MailConfig) *SMTPTransport {
	if ok, _ := m.Ready(); !ok {
		return nil
	}
	return NewSMTPTransport(SMTPConfig{
		Host:        m.Host,
		Port:        m.Port,
		Username:    m.User,
		Password:    m.Password,
		FromAddress: m.From,
		FromName:    m.FromName,
		Timeout:     m.Timeout,
	})
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("email: %w", err)
	}

	m, err := t.build(msg)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(t.cfg.Host, t.clientOptions()...)
	if err != nil {
		return fmt.Errorf("email: failed to create client: %w", err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}

	return nil
}

func (t *SMTPTransport) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if t.cfg.FromName != "" {
		if err := m.FromFormat(t.cfg.FromName, t.cfg.FromAddress); err != nil {
			return nil, fmt.Errorf("email: invalid from address: %w", err)
		}
	} else {
		if err := m.From(t.cfg.FromAddress); err != nil {
			return nil, fmt.Errorf("email: invalid from address: %w", err)
		}
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("email: invalid to address: %w", err)
	}

	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("email: invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	return m, nil
}

func (t *SMTPTransport) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.cfg.Timeout),
	}

	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}

	if t.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		// keeps the configured port; the port policy variant would redial 25 as 587
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	return opts
}
