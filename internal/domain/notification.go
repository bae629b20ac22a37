package domain

// Notification is the transient user-facing status line.
type Notification struct {
	Message string            `json:"message"`
	Level   NotificationLevel `json:"level"`
}
