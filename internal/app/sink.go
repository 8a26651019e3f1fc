package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jsean662/MailFlowAI/internal/model"
)

// notificationMsg carries a store notification to the UI loop.
type notificationMsg struct {
	notification model.Notification
}

// NotificationSink bridges store notifications into the Bubble Tea
// message loop. Publish is called while the store holds its lock, so it
// must never block.
type NotificationSink struct {
	ch chan model.Notification
}

// NewNotificationSink creates a sink with a buffered delivery channel.
func NewNotificationSink() *NotificationSink {
	return &NotificationSink{
		ch: make(chan model.Notification, 16),
	}
}

// Publish queues a notification for display. When the buffer is full the
// notification is dropped; banners are best-effort.
func (s *NotificationSink) Publish(n model.Notification) {
	select {
	case s.ch <- n:
	default:
	}
}

// wait returns a command that blocks until the next notification arrives.
func (s *NotificationSink) wait() tea.Cmd {
	return func() tea.Msg {
		return notificationMsg{notification: <-s.ch}
	}
}
