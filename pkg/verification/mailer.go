package verification

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"github.com/tendant/simple-otp/pkg/notification"
	"github.com/tendant/simple-otp/pkg/otpcode"
)

// Mailer delivers an issued code to an email address.
type Mailer interface {
	SendOtp(ctx context.Context, email string, entry otpcode.Entry) error
}

// NotificationMailer sends codes with the OtpCodeNotice template.
type NotificationMailer struct {
	nm *notification.NotificationManager
}

func NewNotificationMailer(nm *notification.NotificationManager) *NotificationMailer {
	return &NotificationMailer{nm: nm}
}

func (m *NotificationMailer) SendOtp(ctx context.Context, email string, entry otpcode.Entry) error {
	minutes := int(math.Ceil(entry.ValidFor().Minutes()))
	return m.nm.Send(ctx, notification.OtpCodeNotice, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"Code":         entry.Code,
			"ValidMinutes": strconv.Itoa(minutes),
		},
	}, notification.EmailSystem)
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct{}

func (LogMailer) SendOtp(_ context.Context, email string, entry otpcode.Entry) error {
	slog.Warn("Otp code not mailed, log mailer in use", "email", email, "user_id", entry.UserID, "code", entry.Code, "expires_at", entry.ExpiresAt)
	return nil
}
