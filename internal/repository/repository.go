// Package repository persists conversations.
package repository

import (
	"context"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// Store defines the interface for conversation persistence.
type Store interface {
	SaveConversation(ctx context.Context, conv *domain.Conversation) error
	// GetConversation returns nil, nil when id is unknown.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	// ListConversations returns conversations, most recently updated first.
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
