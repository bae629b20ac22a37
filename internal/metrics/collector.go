// Package metrics derives stream statistics from conversation progress.
//
// Token counts are an approximation: the number of whitespace-delimited
// runs in the assistant's text. They are diagnostics, not billing figures.
package metrics

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// CountTokens approximates the token count of text. Empty input yields 0.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Collector tracks the StreamStats of the current exchange.
type Collector struct {
	now   func() time.Time
	stats *domain.StreamStats
}

// NewCollector creates a collector. A nil clock means time.Now.
func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{now: now}
}

// Begin replaces the current stats with a fresh instance for modelID.
func (c *Collector) Begin(modelID string) {
	c.stats = &domain.StreamStats{
		ModelID:   modelID,
		StartedAt: c.now(),
	}
}

// Observe records the assistant's current text. The first observation with
// a positive token count fixes FirstTokenMs; later ones never revise it.
// It reports whether first-token latency was captured by this call.
func (c *Collector) Observe(content string) bool {
	if c.stats == nil {
		return false
	}
	tokens := CountTokens(content)
	if tokens > c.stats.Tokens {
		c.stats.Tokens = tokens
	}
	if c.stats.FirstTokenMs == nil && tokens > 0 {
		ms := c.elapsedMs()
		c.stats.FirstTokenMs = &ms
		return true
	}
	return false
}

// Finish finalises tokens from the completed content and sets DurationMs.
// Repeated calls keep the first duration.
func (c *Collector) Finish(content string) {
	if c.stats == nil {
		return
	}
	c.Observe(content)
	if c.stats.DurationMs == nil {
		ms := c.elapsedMs()
		c.stats.DurationMs = &ms
	}
}

// Stats returns a copy of the current stats, or nil.
func (c *Collector) Stats() *domain.StreamStats {
	return c.stats.Clone()
}

// Clear drops the current stats.
func (c *Collector) Clear() {
	c.stats = nil
}

// Throughput returns tokens per second for s.
func Throughput(s *domain.StreamStats) float64 {
	return s.Throughput()
}

func (c *Collector) elapsedMs() int64 {
	return c.now().Sub(c.stats.StartedAt).Milliseconds()
}
