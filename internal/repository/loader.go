package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// NewConversation returns an empty conversation with a fresh id.
func NewConversation(now time.Time) domain.Conversation {
	return domain.Conversation{
		ID:        uuid.NewString(),
		Title:     domain.DefaultConversationTitle,
		UpdatedAt: now,
		Messages:  []domain.Message{},
	}
}

// LoadAll returns the stored conversations. Storage failures and an empty
// store both fall back to a single empty conversation.
func LoadAll(ctx context.Context, store Store, logger *zap.Logger) []domain.Conversation {
	convs, err := store.ListConversations(ctx)
	if err != nil {
		logger.Warn("failed to load conversations", zap.Error(err))
		convs = nil
	}
	if len(convs) == 0 {
		return []domain.Conversation{NewConversation(time.Now())}
	}
	return convs
}
