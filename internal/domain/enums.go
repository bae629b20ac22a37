// Package domain defines the core domain models for the chat client.
package domain

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Status represents the lifecycle state of a session's current exchange.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusErrored   Status = "errored"
)

// Active reports whether an exchange is in flight.
func (s Status) Active() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

// NotificationLevel is the severity of a user-facing notification.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// PartType identifies the kind of a message part.
type PartType string

const (
	PartTypeText         PartType = "text"
	PartTypeNotification PartType = "data-notification"
)

// TelemetryEvent names the records sent to the telemetry sink.
type TelemetryEvent string

const (
	TelemetryStreamFinish TelemetryEvent = "stream_finish"
	TelemetrySendError    TelemetryEvent = "send_error"
	TelemetryError        TelemetryEvent = "error"
)

// MetadataSummary marks the synthetic message produced by trimming.
const MetadataSummary = "summary"
