package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
	FromName string
	// SkipVerify disables server certificate checks. Local relays only.
	SkipVerify bool
	Timeout    time.Duration
}

type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(timeout),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         config.Host,
			InsecureSkipVerify: config.SkipVerify,
		}),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if config.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	slog.Info("Creating mail client", "host", config.Host, "port", config.Port, "tls", config.TLS)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

func (e *EmailNotifier) Send(ctx context.Context, noticeType NoticeType, m Message) error {
	if m.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	msg := mail.NewMsg()
	if e.SMTPConfig.FromName != "" {
		if err := msg.FromFormat(e.SMTPConfig.FromName, e.SMTPConfig.From); err != nil {
			return fmt.Errorf("failed to set from address: %w", err)
		}
	} else if err := msg.From(e.SMTPConfig.From); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}
	msg.Subject(m.Subject)

	switch {
	case m.Text != "" && m.Html != "":
		msg.SetBodyString(mail.TypeTextPlain, m.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, m.Html)
	case m.Html != "":
		msg.SetBodyString(mail.TypeTextHTML, m.Html)
	default:
		msg.SetBodyString(mail.TypeTextPlain, m.Text)
	}

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send email", "type", noticeType, "host", e.SMTPConfig.Host, "err", err)
		return err
	}

	slog.Info("Email sent successfully", "type", noticeType, "to", m.To, "host", e.SMTPConfig.Host)
	return nil
}
