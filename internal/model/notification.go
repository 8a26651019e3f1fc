package model

import "time"

// NotificationLevel classifies a notification for display purposes.
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a fire-and-forget banner message surfaced to the user,
// for example when the background poll detects new mail.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Level selects the banner styling.
	Level NotificationLevel `json:"level"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
