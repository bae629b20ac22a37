package domain

import "time"

// DefaultConversationTitle is used until the first message names a conversation.
const DefaultConversationTitle = "New Conversation"

// Conversation is a stored chat history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// TitleFor derives a conversation title from its first message.
func TitleFor(messages []Message) string {
	if len(messages) == 0 {
		return DefaultConversationTitle
	}
	text := messages[0].TextContent()
	if text == "" {
		return DefaultConversationTitle
	}
	runes := []rune(text)
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return string(runes) + "..."
}
