package domain

import "time"

// StreamStats holds timing and throughput figures for one exchange.
// Token counts are approximate.
type StreamStats struct {
	ModelID      string    `json:"model_id"`
	StartedAt    time.Time `json:"started_at"`
	Tokens       int       `json:"tokens"`
	FirstTokenMs *int64    `json:"first_token_ms,omitempty"`
	DurationMs   *int64    `json:"duration_ms,omitempty"`
}

// Throughput returns tokens per second, or 0 until the exchange has a duration.
func (s *StreamStats) Throughput() float64 {
	if s == nil || s.DurationMs == nil || *s.DurationMs <= 0 {
		return 0
	}
	return float64(s.Tokens) / float64(*s.DurationMs) * 1000
}

// Clone copies the stats including the optional fields.
func (s *StreamStats) Clone() *StreamStats {
	if s == nil {
		return nil
	}
	out := *s
	if s.FirstTokenMs != nil {
		v := *s.FirstTokenMs
		out.FirstTokenMs = &v
	}
	if s.DurationMs != nil {
		v := *s.DurationMs
		out.DurationMs = &v
	}
	return &out
}
