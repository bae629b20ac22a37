package provider

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/streamchat/internal/adapter/llm"
	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// Mock replays the deterministic mock reply of the llm package.
type Mock struct {
	client *llm.MockClient
}

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{client: llm.NewMockClient()}
}

// NewMockWithDelay creates a mock provider with the given chunk delay.
func NewMockWithDelay(delay time.Duration) *Mock {
	return &Mock{client: &llm.MockClient{Delay: delay, ChunkSize: 10}}
}

// Stream implements Provider.
func (m *Mock) Stream(ctx context.Context, model string, messages []domain.WireMessage, emit DeltaFunc) error {
	req := &domain.ChatRequest{Messages: messages, Model: model}
	return m.client.StreamChat(ctx, req, func(event *domain.StreamEvent) error {
		return emit(event.Delta)
	})
}
