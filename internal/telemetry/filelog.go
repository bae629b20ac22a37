package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileLog appends received telemetry records as JSON lines.
type FileLog struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenFileLog opens path for appending, creating it if needed.
func OpenFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry log: %w", err)
	}
	return &FileLog{file: f, now: time.Now}, nil
}

// Append writes record with a receivedAt timestamp. Record fields win over
// receivedAt only if the client sent one.
func (l *FileLog) Append(record map[string]any) error {
	entry := map[string]any{"receivedAt": l.now().UTC().Format(time.RFC3339Nano)}
	for k, v := range record {
		entry[k] = v
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("failed to write telemetry record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *FileLog) Close() error {
	return l.file.Close()
}
