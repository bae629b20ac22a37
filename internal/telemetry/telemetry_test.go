package telemetry

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

func TestHTTPSinkPostsRecord(t *testing.T) {
	var mu sync.Mutex
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL, zap.NewNop())
	sink.Emit(domain.TelemetryStreamFinish, map[string]any{"model": "m1", "tokens": 2})
	sink.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "stream_finish", got["event"])
	assert.Equal(t, "m1", got["model"])
	assert.EqualValues(t, 2, got["tokens"])
}

func TestHTTPSinkSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	sink := NewHTTPSink(url, zap.NewNop())
	start := time.Now()
	sink.Emit(domain.TelemetryError, map[string]any{"error": "boom"})
	assert.Less(t, time.Since(start), 100*time.Millisecond, "emit must not block")
	sink.Flush()
}

func TestNewDisabledIsNop(t *testing.T) {
	assert.IsType(t, Nop{}, New(false, "http://example.invalid", zap.NewNop()))
	assert.IsType(t, Nop{}, New(true, "", zap.NewNop()))
	assert.IsType(t, &HTTPSink{}, New(true, "http://example.invalid", zap.NewNop()))
}

func TestFileLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.log")
	log, err := OpenFileLog(path)
	require.NoError(t, err)
	log.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, log.Append(map[string]any{"event": "send_error", "attempt": 1}))
	require.NoError(t, log.Append(map[string]any{"event": "stream_finish"}))
	require.NoError(t, log.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-01-02T03:04:05Z", lines[0]["receivedAt"])
	assert.Equal(t, "send_error", lines[0]["event"])
	assert.Equal(t, "stream_finish", lines[1]["event"])
}
