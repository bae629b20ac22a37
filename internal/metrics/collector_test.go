package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCountTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"Hi ", 1},
		{"Hi there", 2},
		{"  leading and   trailing  ", 3},
		{"line\nbreak\ttab", 3},
		{"\x00\xff broken utf8", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountTokens(tt.in), "input %q", tt.in)
	}
}

func TestCollectorLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewCollector(clock.Now)

	c.Begin("m1")
	stats := c.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, "m1", stats.ModelID)
	assert.Equal(t, 0, stats.Tokens)
	assert.Nil(t, stats.FirstTokenMs)

	clock.Advance(120 * time.Millisecond)
	assert.False(t, c.Observe(""), "empty content is not a first token")

	clock.Advance(30 * time.Millisecond)
	assert.True(t, c.Observe("Hi "))
	stats = c.Stats()
	require.NotNil(t, stats.FirstTokenMs)
	assert.EqualValues(t, 150, *stats.FirstTokenMs)
	assert.Equal(t, 1, stats.Tokens)

	clock.Advance(100 * time.Millisecond)
	assert.False(t, c.Observe("Hi there"))
	stats = c.Stats()
	assert.EqualValues(t, 150, *stats.FirstTokenMs, "first token latency is immutable")
	assert.Equal(t, 2, stats.Tokens)

	clock.Advance(250 * time.Millisecond)
	c.Finish("Hi there")
	stats = c.Stats()
	require.NotNil(t, stats.DurationMs)
	assert.EqualValues(t, 500, *stats.DurationMs)
	assert.InDelta(t, 4.0, Throughput(stats), 0.0001)

	clock.Advance(time.Second)
	c.Finish("Hi there")
	assert.EqualValues(t, 500, *c.Stats().DurationMs)
}

func TestCollectorTokensNeverDecrease(t *testing.T) {
	c := NewCollector(nil)
	c.Begin("m")
	c.Observe("one two three")
	c.Observe("one")
	assert.Equal(t, 3, c.Stats().Tokens)
}

func TestCollectorBeginReplaces(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewCollector(clock.Now)
	c.Begin("a")
	c.Observe("x y")
	old := c.Stats()

	c.Begin("b")
	fresh := c.Stats()
	assert.Equal(t, "b", fresh.ModelID)
	assert.Equal(t, 0, fresh.Tokens)
	assert.Nil(t, fresh.FirstTokenMs)
	assert.Equal(t, 2, old.Tokens, "previous snapshot is not mutated")
}

func TestCollectorWithoutBegin(t *testing.T) {
	c := NewCollector(nil)
	assert.False(t, c.Observe("text"))
	c.Finish("text")
	assert.Nil(t, c.Stats())
}

func TestThroughputZeroDuration(t *testing.T) {
	zero := int64(0)
	assert.Equal(t, 0.0, Throughput(&domain.StreamStats{Tokens: 10}))
	assert.Equal(t, 0.0, Throughput(&domain.StreamStats{Tokens: 10, DurationMs: &zero}))
	assert.Equal(t, 0.0, Throughput(nil))
}
