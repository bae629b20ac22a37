package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// MockClient streams a canned reply without touching the network.
type MockClient struct {
	// Delay is the pause between chunks.
	Delay time.Duration
	// ChunkSize is the number of bytes per chunk.
	ChunkSize int
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{Delay: 20 * time.Millisecond, ChunkSize: 10}
}

// StreamChat simulates a streaming response.
func (m *MockClient) StreamChat(ctx context.Context, req *domain.ChatRequest, callback StreamCallback) error {
	for _, chunk := range SplitIntoChunks(MockReply(req), m.ChunkSize) {
		if m.Delay > 0 {
			timer := time.NewTimer(m.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := callback(&domain.StreamEvent{Type: domain.StreamEventTextDelta, Delta: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// MockReply builds the canned reply for req.
func MockReply(req *domain.ChatRequest) string {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			lastUserMessage = req.Messages[i].Text()
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the chat backend."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response from %s.", truncate(lastUserMessage, 100), req.Model)
}

// SplitIntoChunks splits a string into chunks of approximately the given size.
func SplitIntoChunks(s string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	if len(s) == 0 {
		return nil
	}

	var chunks []string
	runes := []rune(s)
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
