package ws

import "github.com/xiaot623/gogo/streamchat/internal/session"

// Frame types from client to server
const (
	TypeSend       = "send"
	TypeStop       = "stop"
	TypeRegenerate = "regenerate"
	TypeRetry      = "retry"
	TypeReset      = "reset"
	TypeTrim       = "trim"
	TypeDismiss    = "dismiss"
	TypeModel      = "model"
	TypeLoad       = "load"
	TypeOnline     = "online"
)

// Frame types from server to client
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// ClientFrame is any frame sent by a client. Fields are used per type.
type ClientFrame struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Keep           int    `json:"keep,omitempty"`
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Online         *bool  `json:"online,omitempty"`
}

// SnapshotFrame pushes the session state after a change.
type SnapshotFrame struct {
	Type           string           `json:"type"`
	Ts             int64            `json:"ts"`
	ConversationID string           `json:"conversation_id"`
	State          session.Snapshot `json:"state"`
}

// ErrorFrame reports a rejected or invalid client frame.
type ErrorFrame struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeRejected       = "rejected"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeInternalError  = "internal_error"
)
