package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextContent(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want string
	}{
		{"nil", nil, ""},
		{"content wins", &Message{Content: "streamed", Parts: []Part{{Type: PartTypeText, Text: "part"}}}, "streamed"},
		{"parts joined", &Message{Parts: []Part{{Type: PartTypeText, Text: "a"}, {Type: PartTypeText, Text: "b"}}}, "a b"},
		{"non-text parts skipped", &Message{Parts: []Part{{Type: PartTypeNotification, Text: "x"}, {Type: PartTypeText, Text: "y"}}}, "y"},
		{"empty", &Message{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.TextContent())
		})
	}
}

func TestDisplayTextConcatenatesParts(t *testing.T) {
	msg := &Message{Parts: []Part{
		{Type: PartTypeText, Text: "Hel"},
		{Type: PartTypeNotification, Text: "ignored"},
		{Type: PartTypeText, Text: "lo, "},
		{Type: PartTypeText, Text: "world"},
	}}
	assert.Equal(t, "Hello, world", msg.DisplayText())
	assert.Equal(t, "Hel lo, world", msg.TextContent())

	assert.Equal(t, "streamed", (&Message{Content: "streamed", Parts: msg.Parts}).DisplayText())
	assert.Equal(t, "", (*Message)(nil).DisplayText())
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, DefaultConversationTitle, TitleFor(nil))
	assert.Equal(t, DefaultConversationTitle, TitleFor([]Message{{Role: RoleUser}}))
	assert.Equal(t, "Hi...", TitleFor([]Message{{Role: RoleUser, Content: "Hi"}}))

	long := strings.Repeat("é", 40)
	assert.Equal(t, strings.Repeat("é", 30)+"...", TitleFor([]Message{{Content: long}}))
}

func TestToWire(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Parts: []Part{{Type: PartTypeText, Text: "from parts"}}},
	}
	wire := ToWire(msgs)
	assert.Equal(t, []WireMessage{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Parts: []Part{{Type: PartTypeText, Text: "from parts"}}},
	}, wire)
	assert.Equal(t, "from parts", wire[1].Text())
}

func TestThroughput(t *testing.T) {
	var nilStats *StreamStats
	assert.Zero(t, nilStats.Throughput())
	assert.Zero(t, (&StreamStats{Tokens: 5}).Throughput())

	d := int64(250)
	assert.InDelta(t, 8.0, (&StreamStats{Tokens: 2, DurationMs: &d}).Throughput(), 1e-9)
}

func TestClonesAreIndependent(t *testing.T) {
	first := int64(10)
	stats := &StreamStats{ModelID: "m", FirstTokenMs: &first}
	cp := stats.Clone()
	*cp.FirstTokenMs = 99
	assert.Equal(t, int64(10), *stats.FirstTokenMs)
	assert.Nil(t, (*StreamStats)(nil).Clone())

	msg := Message{Parts: []Part{{Type: PartTypeText, Text: "a"}}, Metadata: map[string]any{MetadataSummary: true}}
	mc := msg.Clone()
	mc.Parts[0].Text = "b"
	mc.Metadata["x"] = 1
	assert.Equal(t, "a", msg.Parts[0].Text)
	assert.NotContains(t, msg.Metadata, "x")
	assert.True(t, msg.IsSummary())
}

func TestStatusAndModels(t *testing.T) {
	assert.True(t, StatusSubmitted.Active())
	assert.True(t, StatusStreaming.Active())
	assert.False(t, StatusDone.Active())
	assert.False(t, StatusErrored.Active())
	assert.False(t, Role("tool").Valid())

	m, ok := FindModel(DefaultModelID)
	assert.True(t, ok)
	assert.Equal(t, "Mistral Large 3", m.Label)
	assert.Equal(t, DefaultModelID, ModelOptions[6].ID)
	_, ok = FindModel("nope")
	assert.False(t, ok)
}
