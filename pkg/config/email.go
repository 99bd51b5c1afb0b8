package config

import (
	"time"

	"github.com/tendant/simple-otp/pkg/notification"
)

// EmailConfig holds SMTP email configuration. An empty host disables SMTP.
type EmailConfig struct {
	Host       string        `env:"EMAIL_HOST" env-default:""`
	Port       uint16        `env:"EMAIL_PORT" env-default:"1025"`
	Username   string        `env:"EMAIL_USERNAME" env-default:""`
	Password   string        `env:"EMAIL_PASSWORD" env-default:""`
	From       string        `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	FromName   string        `env:"EMAIL_FROM_NAME" env-default:"Verification"`
	TLS        bool          `env:"EMAIL_TLS" env-default:"false"`
	SkipVerify bool          `env:"EMAIL_TLS_SKIP_VERIFY" env-default:"false"`
	Timeout    time.Duration `env:"EMAIL_TIMEOUT" env-default:"30s"`
}

// IsConfigured reports whether an SMTP host is set.
func (e EmailConfig) IsConfigured() bool {
	return e.Host != ""
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:       e.Host,
		Port:       int(e.Port),
		Username:   e.Username,
		Password:   e.Password,
		From:       e.From,
		FromName:   e.FromName,
		TLS:        e.TLS,
		SkipVerify: e.SkipVerify,
		Timeout:    e.Timeout,
	}
}
