package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/streamchat/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			messages TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveConversation inserts or replaces a conversation. Streaming flags are
// not persisted.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	msgs := make([]domain.Message, len(conv.Messages))
	for i, m := range conv.Messages {
		msgs[i] = m.Clone()
		msgs[i].IsStreaming = false
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	title := conv.Title
	if title == "" {
		title = domain.TitleFor(conv.Messages)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, updated_at, messages) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at, messages = excluded.messages`,
		conv.ID, title, updatedAt.UTC(), string(data))
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var messages sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, updated_at, messages FROM conversations WHERE id = ?`,
		id).Scan(&conv.ID, &conv.Title, &conv.UpdatedAt, &messages)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv.Messages = decodeMessages(messages)
	return &conv, nil
}

// ListConversations lists all conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, updated_at, messages FROM conversations ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var messages sql.NullString
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.UpdatedAt, &messages); err != nil {
			return nil, err
		}
		conv.Messages = decodeMessages(messages)
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation. Unknown ids are not an error.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// decodeMessages never fails: malformed history yields an empty conversation.
func decodeMessages(raw sql.NullString) []domain.Message {
	msgs := []domain.Message{}
	if !raw.Valid || raw.String == "" {
		return msgs
	}
	if err := json.Unmarshal([]byte(raw.String), &msgs); err != nil {
		return []domain.Message{}
	}
	return msgs
}
