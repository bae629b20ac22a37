// Package telemetry ships best-effort diagnostic events.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// Sink accepts telemetry events. Implementations never block the caller and
// never report failures.
type Sink interface {
	Emit(event domain.TelemetryEvent, fields map[string]any)
}

// Nop discards events.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(domain.TelemetryEvent, map[string]any) {}

// HTTPSink posts `{event, ...fields}` JSON records to a collector.
type HTTPSink struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewHTTPSink creates a sink posting to url.
func NewHTTPSink(url string, logger *zap.Logger) *HTTPSink {
	return &HTTPSink{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// New returns an HTTPSink when enabled and a URL is set, otherwise Nop.
func New(enabled bool, url string, logger *zap.Logger) Sink {
	if !enabled || url == "" {
		return Nop{}
	}
	return NewHTTPSink(url, logger)
}

// Emit sends the record in the background.
func (s *HTTPSink) Emit(event domain.TelemetryEvent, fields map[string]any) {
	record := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		record[k] = v
	}
	record["event"] = string(event)

	body, err := json.Marshal(record)
	if err != nil {
		s.logger.Debug("telemetry marshal failed", zap.Error(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.logger.Debug("telemetry post failed", zap.String("event", string(event)), zap.Error(err))
			return
		}
		resp.Body.Close()
	}()
}

// Flush waits for in-flight posts.
func (s *HTTPSink) Flush() {
	s.wg.Wait()
}
