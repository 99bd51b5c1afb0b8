package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotificationManager(t *testing.T) {
	nm, err := NewNotificationManager()
	require.NoError(t, err)
	assert.NotNil(t, nm.notifiers)
	assert.NotNil(t, nm.notificationRegistry)

	_, err = NewNotificationManager(func(*NotificationManager) error {
		return errors.New("bad option")
	})
	assert.Error(t, err)
}

func TestRegisterNotifier(t *testing.T) {
	nm, err := NewNotificationManager()
	require.NoError(t, err)

	mockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, mockNotifier)
	assert.Same(t, mockNotifier, nm.notifiers[EmailSystem])

	// Overwrites existing notifier
	newMockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, newMockNotifier)
	assert.Same(t, newMockNotifier, nm.notifiers[EmailSystem])
}

func TestRegisterNotification(t *testing.T) {
	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{
			name:       "Text and Html",
			noticeType: OtpCodeNotice,
			system:     EmailSystem,
			template:   NoticeTemplate{Subject: "Code", Text: "code {{.Code}}", Html: "<p>{{.Code}}</p>"},
		},
		{
			name:       "Text only",
			noticeType: OtpCodeNotice,
			system:     EmailSystem,
			template:   NoticeTemplate{Subject: "Code", Text: "code {{.Code}}"},
		},
		{
			name:        "Empty notice type",
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Code", Text: "code"},
			shouldError: true,
		},
		{
			name:        "Empty system",
			noticeType:  OtpCodeNotice,
			template:    NoticeTemplate{Subject: "Code", Text: "code"},
			shouldError: true,
		},
		{
			name:        "No body",
			noticeType:  OtpCodeNotice,
			system:      EmailSystem,
			template:    NoticeTemplate{Subject: "Code"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nm, err := NewNotificationManager()
			require.NoError(t, err)

			err = nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.template, nm.notificationRegistry[tt.noticeType][tt.system])
		})
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	data := NotificationData{
		To:   "user@gmail.com",
		Data: map[string]string{"Code": "482913", "ValidMinutes": "2"},
	}

	t.Run("OtpCodeTemplate", func(t *testing.T) {
		mock := &MockNotifier{}
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, mock), WithOtpCodeTemplate())
		require.NoError(t, err)

		require.NoError(t, nm.Send(ctx, OtpCodeNotice, data, EmailSystem))

		sent := mock.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "user@gmail.com", sent[0].To)
		assert.Equal(t, "Your Verification OTP - Secure Your Account", sent[0].Subject)
		assert.Contains(t, sent[0].Text, "Your OTP is: 482913. It expires in 2 minutes.")
		assert.Contains(t, sent[0].Html, "482913")
		assert.Contains(t, sent[0].Html, "<strong>2 minutes</strong>")
	})

	t.Run("MissingTemplate", func(t *testing.T) {
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, &MockNotifier{}))
		require.NoError(t, err)
		assert.Error(t, nm.Send(ctx, OtpCodeNotice, data, EmailSystem))
	})

	t.Run("MissingNotifier", func(t *testing.T) {
		nm, err := NewNotificationManager(WithOtpCodeTemplate())
		require.NoError(t, err)
		err = nm.Send(ctx, OtpCodeNotice, data, EmailSystem)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no notifier registered")
	})

	t.Run("MissingTemplateValue", func(t *testing.T) {
		mock := &MockNotifier{}
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, mock), WithOtpCodeTemplate())
		require.NoError(t, err)

		err = nm.Send(ctx, OtpCodeNotice, NotificationData{To: "user@gmail.com"}, EmailSystem)
		assert.Error(t, err)
		assert.Empty(t, mock.Sent())
	})

	t.Run("NotifierError", func(t *testing.T) {
		boom := errors.New("smtp down")
		mock := &MockNotifier{Err: boom}
		nm, err := NewNotificationManager(WithNotifier(EmailSystem, mock), WithOtpCodeTemplate())
		require.NoError(t, err)
		assert.ErrorIs(t, nm.Send(ctx, OtpCodeNotice, data, EmailSystem), boom)
	})
}

func TestRender_EscapesHtml(t *testing.T) {
	msg, err := Render(NoticeTemplate{Subject: "s", Html: "<p>{{.Code}}</p>"}, NotificationData{
		Data: map[string]string{"Code": "<b>x</b>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>&lt;b&gt;x&lt;/b&gt;</p>", msg.Html)
}

func TestNewEmailNotifier_Validation(t *testing.T) {
	_, err := NewEmailNotifier(SMTPConfig{From: "a@b.com"})
	assert.Error(t, err)

	_, err = NewEmailNotifier(SMTPConfig{Host: "localhost"})
	assert.Error(t, err)
}
