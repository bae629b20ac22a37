package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleConversation(id string, updated time.Time) *domain.Conversation {
	return &domain.Conversation{
		ID:        id,
		UpdatedAt: updated,
		Messages: []domain.Message{
			{ID: id + "-u", Role: domain.RoleUser, Content: "How do I brew pour-over coffee at home?", CreatedAt: updated},
			{ID: id + "-a", Role: domain.RoleAssistant, Content: "Start with a medium-fine grind.", CreatedAt: updated, IsStreaming: true},
		},
	}
}

func TestSQLiteStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("c1", now)))

	got, err := store.GetConversation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "How do I brew pour-over coffee...", got.Title)
	assert.True(t, got.UpdatedAt.Equal(now))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Start with a medium-fine grind.", got.Messages[1].Content)
	assert.False(t, got.Messages[1].IsStreaming, "streaming flags are not persisted")

	missing, err := store.GetConversation(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStoreUpsertAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("old", base)))
	require.NoError(t, store.SaveConversation(ctx, sampleConversation("new", base.Add(time.Hour))))

	updated := sampleConversation("old", base.Add(2*time.Hour))
	updated.Title = "Coffee"
	require.NoError(t, store.SaveConversation(ctx, updated))

	convs, err := store.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "old", convs[0].ID)
	assert.Equal(t, "Coffee", convs[0].Title)
	assert.Equal(t, "new", convs[1].ID)
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("c1", time.Now())))
	require.NoError(t, store.DeleteConversation(ctx, "c1"))
	require.NoError(t, store.DeleteConversation(ctx, "c1"))

	got, err := store.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreMalformedMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, updated_at, messages) VALUES (?, ?, ?, ?)`,
		"broken", "Broken", time.Now().UTC(), "{not json")
	require.NoError(t, err)

	got, err := store.GetConversation(ctx, "broken")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Broken", got.Title)
	assert.Empty(t, got.Messages)
	assert.NotNil(t, got.Messages)
}

func TestLoadAllFallsBackToEmptyConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	convs := LoadAll(ctx, store, zap.NewNop())
	require.Len(t, convs, 1)
	assert.Equal(t, domain.DefaultConversationTitle, convs[0].Title)
	assert.NotEmpty(t, convs[0].ID)
	assert.Empty(t, convs[0].Messages)

	require.NoError(t, store.Close())
	convs = LoadAll(ctx, store, zap.NewNop())
	require.Len(t, convs, 1, "storage errors fall back too")
}

func TestLoadAllReturnsStored(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveConversation(ctx, sampleConversation("c1", time.Now())))

	convs := LoadAll(ctx, store, zap.NewNop())
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
}
