// Package notification renders templated notices and delivers them through
// registered notifiers.
//
// A NotificationManager maps a NoticeType to a NoticeTemplate per
// NotificationSystem and hands the rendered message to that system's Notifier:
//
//	nm, err := notification.NewNotificationManager(
//	    notification.WithSMTP(notification.SMTPConfig{
//	        Host: "smtp.example.com",
//	        Port: 587,
//	        TLS:  true,
//	        From: "verify@example.com",
//	    }),
//	    notification.WithOtpCodeTemplate(),
//	)
//	if err != nil {
//	    return err
//	}
//
//	err = nm.Send(ctx, notification.OtpCodeNotice, notification.NotificationData{
//	    To:   "user@gmail.com",
//	    Data: map[string]string{"Code": "123456", "ValidMinutes": "2"},
//	}, notification.EmailSystem)
//
// MockNotifier records messages instead of sending them and is meant for tests.
package notification
