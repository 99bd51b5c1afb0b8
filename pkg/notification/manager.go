package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// NotificationManager manages notifiers and notice templates.
type NotificationManager struct {
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates a manager and applies opts in order.
func NewNotificationManager(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template for noticeType on system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, tmpl NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if tmpl.Text == "" && tmpl.Html == "" {
		return fmt.Errorf("invalid input: template for %s needs a text or html body", noticeType)
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = tmpl
	return nil
}

// Send renders noticeType for system and delivers it.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, data NotificationData, system NotificationSystem) error {
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	tmpl, exists := systemTemplates[system]
	if !exists {
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}
	notifier, exists := nm.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	msg, err := Render(tmpl, data)
	if err != nil {
		slog.Error("Failed to render notice", "type", noticeType, "system", system, "err", err)
		return fmt.Errorf("failed to render %s notice: %w", noticeType, err)
	}

	return notifier.Send(ctx, noticeType, msg)
}
