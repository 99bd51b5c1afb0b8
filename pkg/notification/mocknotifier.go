package notification

import (
	"context"
	"sync"
)

// MockNotifier records messages instead of delivering them. When Err is set
// Send returns it and records nothing.
type MockNotifier struct {
	mu                sync.Mutex
	Err               error
	SentNotifications []Message
}

func (m *MockNotifier) Send(_ context.Context, _ NoticeType, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockNotifier) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.SentNotifications...)
}
