package messagestore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

func fill(s *Store, n int) {
	base := time.Unix(1700000000, 0)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		s.Append(domain.Message{
			ID:        fmt.Sprintf("m%d", i),
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	s := New()
	fill(s, 3)

	s.Append(domain.Message{ID: "late", Role: domain.RoleUser, CreatedAt: time.Unix(0, 0)})

	msgs := s.Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, "late", msgs[3].ID)
	assert.False(t, msgs[3].CreatedAt.Before(msgs[2].CreatedAt), "createdAt must be non-decreasing")
}

func TestMergeStreamingDelta(t *testing.T) {
	s := New()
	fill(s, 2)

	assert.True(t, s.MergeStreamingDelta("m1", " more"))
	last, _ := s.Last()
	assert.Equal(t, "message 1 more", last.Content)

	// Stale ids never touch history.
	assert.False(t, s.MergeStreamingDelta("m0", "oops"))
	assert.False(t, s.MergeStreamingDelta("missing", "oops"))
	first, _ := s.Find("m0")
	assert.Equal(t, "message 0", first.Content)
}

func TestMergeStreamingDeltaEmptyStore(t *testing.T) {
	s := New()
	assert.False(t, s.MergeStreamingDelta("any", "x"))
	assert.Equal(t, 0, s.Len())
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		cap      int
		visible  int
		archived int
	}{
		{"empty", 0, 60, 0, 0},
		{"under cap", 10, 60, 10, 0},
		{"at cap", 60, 60, 60, 0},
		{"over cap", 75, 60, 60, 15},
		{"small cap", 5, 2, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			fill(s, tt.total)

			w := s.VisibleWindow(tt.cap)
			assert.Len(t, w.Messages, tt.visible)
			assert.Equal(t, tt.archived, w.ArchivedCount)
			assert.Equal(t, tt.total, w.ArchivedCount+len(w.Messages))
			if tt.visible > 0 {
				assert.Equal(t, fmt.Sprintf("m%d", tt.total-1), w.Messages[len(w.Messages)-1].ID)
				assert.Equal(t, fmt.Sprintf("m%d", tt.archived), w.Messages[0].ID)
			}
			assert.Equal(t, tt.total, s.Len(), "archiving never deletes")
		})
	}
}

func TestVisibleWindowDefaultCap(t *testing.T) {
	s := New()
	fill(s, 61)
	w := s.VisibleWindow(0)
	assert.Len(t, w.Messages, DefaultVisibilityCap)
	assert.Equal(t, 1, w.ArchivedCount)
}

func TestTrim(t *testing.T) {
	s := New()
	fill(s, 20)

	require.True(t, s.Trim(5))

	msgs := s.Snapshot()
	require.Len(t, msgs, 6)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.True(t, msgs[0].IsSummary())
	assert.Equal(t, "Summary: 15 earlier messages trimmed.", msgs[0].Content)
	assert.Equal(t, "m15", msgs[1].ID)
	assert.Equal(t, "m19", msgs[5].ID)
	assert.False(t, msgs[0].CreatedAt.After(msgs[1].CreatedAt))
}

func TestTrimShortConversationIsNoop(t *testing.T) {
	s := New()
	fill(s, 4)

	assert.False(t, s.Trim(4))
	assert.False(t, s.Trim(12))
	assert.Equal(t, 4, s.Len())
}

func TestSetStreamingOnlyLast(t *testing.T) {
	s := New()
	fill(s, 3)

	assert.False(t, s.SetStreaming("m0", true), "only the last message may stream")
	assert.True(t, s.SetStreaming("m2", true))

	count := 0
	for _, m := range s.Snapshot() {
		if m.IsStreaming {
			count++
		}
	}
	assert.Equal(t, 1, count)

	assert.True(t, s.SetStreaming("m2", false))
	assert.False(t, s.SetStreaming("m2", false), "clearing twice is not a change")
}

func TestLoadDropsStreamingFlag(t *testing.T) {
	s := New()
	s.Load([]domain.Message{
		{ID: "a", Role: domain.RoleUser, Content: "hi"},
		{ID: "b", Role: domain.RoleAssistant, Content: "partial", IsStreaming: true},
	})

	last, ok := s.Last()
	require.True(t, ok)
	assert.False(t, last.IsStreaming)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

func TestPrefixThrough(t *testing.T) {
	s := New()
	fill(s, 5)

	prefix := s.PrefixThrough("m2")
	require.Len(t, prefix, 3)
	assert.Equal(t, "m2", prefix[2].ID)
	assert.Nil(t, s.PrefixThrough("nope"))
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Append(domain.Message{ID: "a", Role: domain.RoleSystem, Metadata: map[string]any{"k": "v"}})

	snap := s.Snapshot()
	snap[0].Content = "changed"
	snap[0].Metadata["k"] = "changed"

	orig, _ := s.Find("a")
	assert.Equal(t, "", orig.Content)
	assert.Equal(t, "v", orig.Metadata["k"])
}
