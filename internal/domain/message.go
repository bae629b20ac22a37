package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"
)

// Part is one typed fragment of a message.
type Part struct {
	Type PartType        `json:"type"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	ID          string         `json:"id"`
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	Parts       []Part         `json:"parts,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	IsStreaming bool           `json:"is_streaming,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TextContent returns the flattened text used for statistics and titles.
// Streamed content wins; otherwise text parts are joined with a single
// space.
func (m *Message) TextContent() string {
	if m == nil {
		return ""
	}
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartTypeText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

// DisplayText returns the text shown to the user. Streamed content wins;
// otherwise text parts are concatenated as-is.
func (m *Message) DisplayText() string {
	if m == nil {
		return ""
	}
	if m.Content != "" {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// IsSummary reports whether the message is the synthetic trim summary.
func (m *Message) IsSummary() bool {
	if m == nil || m.Metadata == nil {
		return false
	}
	v, _ := m.Metadata[MetadataSummary].(bool)
	return v
}

// Clone returns a deep copy safe to hand to observers.
func (m Message) Clone() Message {
	out := m
	out.Parts = slices.Clone(m.Parts)
	if m.Metadata != nil {
		out.Metadata = maps.Clone(m.Metadata)
	}
	return out
}
