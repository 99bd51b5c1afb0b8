package notification

import "context"

// NotificationSystem is a delivery channel.
type NotificationSystem string

// NoticeType identifies what is being sent.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	OtpCodeNotice NoticeType = "otp_code"
)

// NoticeTemplate holds the subject and body templates for one notice. Text
// and Html are Go templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type NotificationData struct {
	To   string            // Recipient address
	Data map[string]string // Template values
}

// Message is a rendered notice ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, msg Message) error
}
