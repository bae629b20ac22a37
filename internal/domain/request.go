package domain

import "encoding/json"

// WireMessage is a message as sent to the model exchange endpoint.
type WireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// ChatRequest is the body of a model exchange.
type ChatRequest struct {
	Messages []WireMessage `json:"messages"`
	Model    string        `json:"model"`
}

// ToWire converts conversation history into request messages.
// Messages carrying parts keep them; others send flat content.
func ToWire(messages []Message) []WireMessage {
	out := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		wm := WireMessage{Role: m.Role}
		if len(m.Parts) > 0 && m.Content == "" {
			wm.Parts = m.Parts
		} else {
			wm.Content = m.Content
		}
		out = append(out, wm)
	}
	return out
}

// Text returns the flattened text of a wire message.
func (w WireMessage) Text() string {
	m := Message{Content: w.Content, Parts: w.Parts}
	return m.TextContent()
}

// StreamEventType identifies an event in the chat event stream.
type StreamEventType string

const (
	StreamEventTextDelta    StreamEventType = "text-delta"
	StreamEventNotification StreamEventType = "data-notification"
	StreamEventError        StreamEventType = "error"
	StreamEventFinish       StreamEventType = "finish"
)

// StreamEvent is one `data:` payload of the chat event stream.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Delta     string          `json:"delta,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorText string          `json:"errorText,omitempty"`
}

// ErrorResponse is the JSON body of a failed exchange.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
