// Package messagestore holds the canonical, ordered message sequence of a
// conversation and derives its visible window.
package messagestore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// DefaultVisibilityCap is the number of messages rendered before archiving.
const DefaultVisibilityCap = 60

// DefaultTrimKeep is the number of messages kept by Trim when callers pass 0.
const DefaultTrimKeep = 12

// Window is the visible suffix of a conversation.
type Window struct {
	Messages      []domain.Message
	ArchivedCount int
}

// Store owns a conversation's messages. It is not safe for concurrent use;
// the session engine serialises access.
type Store struct {
	messages []domain.Message
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// WithClock replaces the clock used for synthetic messages.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Len returns the total number of messages, archived ones included.
func (s *Store) Len() int {
	return len(s.messages)
}

// Append inserts msg at the end. CreatedAt is clamped so ordering stays
// non-decreasing.
func (s *Store) Append(msg domain.Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if n := len(s.messages); n > 0 && msg.CreatedAt.Before(s.messages[n-1].CreatedAt) {
		msg.CreatedAt = s.messages[n-1].CreatedAt
	}
	s.messages = append(s.messages, msg)
}

// MergeStreamingDelta appends fragment to the content of the last message.
// It is a no-op, returning false, when id does not name the last message.
func (s *Store) MergeStreamingDelta(id, fragment string) bool {
	n := len(s.messages)
	if n == 0 || s.messages[n-1].ID != id {
		return false
	}
	s.messages[n-1].Content += fragment
	return true
}

// AppendPart attaches a structured part to the message identified by id.
func (s *Store) AppendPart(id string, part domain.Part) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.messages[i].Parts = append(s.messages[i].Parts, part)
	return true
}

// SetStreaming flags id as streaming. Setting it clears the flag everywhere
// else, and only the last message may carry it.
func (s *Store) SetStreaming(id string, streaming bool) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	if streaming {
		if i != len(s.messages)-1 {
			return false
		}
		for j := range s.messages {
			s.messages[j].IsStreaming = false
		}
	}
	changed := s.messages[i].IsStreaming != streaming
	s.messages[i].IsStreaming = streaming
	return changed
}

// SetError attaches a failure description to a message.
func (s *Store) SetError(id, text string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.messages[i].Error = text
	return true
}

// Find returns a copy of the message with the given id.
func (s *Store) Find(id string) (domain.Message, bool) {
	i := s.index(id)
	if i < 0 {
		return domain.Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Last returns a copy of the last message.
func (s *Store) Last() (domain.Message, bool) {
	if len(s.messages) == 0 {
		return domain.Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

// PrefixThrough returns copies of all messages up to and including id.
func (s *Store) PrefixThrough(id string) []domain.Message {
	i := s.index(id)
	if i < 0 {
		return nil
	}
	return cloneAll(s.messages[:i+1])
}

// Snapshot returns a copy of the full sequence.
func (s *Store) Snapshot() []domain.Message {
	return cloneAll(s.messages)
}

// VisibleWindow returns the last limit messages and how many are hidden.
// Hidden messages are not deleted.
func (s *Store) VisibleWindow(limit int) Window {
	if limit <= 0 {
		limit = DefaultVisibilityCap
	}
	total := len(s.messages)
	if total <= limit {
		return Window{Messages: cloneAll(s.messages)}
	}
	return Window{
		Messages:      cloneAll(s.messages[total-limit:]),
		ArchivedCount: total - limit,
	}
}

// Trim replaces the history with a summary system message followed by the
// last keep messages. It reports whether anything was trimmed.
func (s *Store) Trim(keep int) bool {
	if keep <= 0 {
		keep = DefaultTrimKeep
	}
	if len(s.messages) <= keep {
		return false
	}
	overflow := len(s.messages) - keep
	kept := s.messages[overflow:]

	createdAt := s.now()
	if kept[0].CreatedAt.Before(createdAt) {
		createdAt = kept[0].CreatedAt
	}
	summary := domain.Message{
		ID:        "summary-" + uuid.New().String()[:8],
		Role:      domain.RoleSystem,
		Content:   fmt.Sprintf("Summary: %d earlier messages trimmed.", overflow),
		CreatedAt: createdAt,
		Metadata:  map[string]any{domain.MetadataSummary: true},
	}

	next := make([]domain.Message, 0, keep+1)
	next = append(next, summary)
	next = append(next, kept...)
	s.messages = next
	return true
}

// Reset clears all messages.
func (s *Store) Reset() {
	s.messages = nil
}

// Load replaces the sequence wholesale. Streaming flags from a previous
// session are dropped.
func (s *Store) Load(messages []domain.Message) {
	s.messages = cloneAll(messages)
	for i := range s.messages {
		s.messages[i].IsStreaming = false
	}
}

func (s *Store) index(id string) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(messages []domain.Message) []domain.Message {
	if len(messages) == 0 {
		return []domain.Message{}
	}
	out := make([]domain.Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}
