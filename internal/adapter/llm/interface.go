// Package llm provides clients for the model exchange endpoint.
package llm

import (
	"context"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// StreamCallback is called for each event of a streaming exchange, in
// arrival order.
type StreamCallback func(event *domain.StreamEvent) error

// Client performs one model exchange and streams its events. It returns nil
// when the stream ends normally.
type Client interface {
	StreamChat(ctx context.Context, req *domain.ChatRequest, callback StreamCallback) error
}

// Ensure implementations satisfy Client.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*MockClient)(nil)
)
