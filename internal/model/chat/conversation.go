package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/mviana/docchat/backend/internal/model/document"
)

// DefaultTitle is shown until the first user message freezes the real title.
const DefaultTitle = "Nova Conversa"

const titleLimit = 30

// Conversation is a titled, ordered transcript plus the documents that
// were in context when its last exchange committed.
type Conversation struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Messages  []Message           `json:"messages"`
	CreatedAt time.Time           `json:"createdAt"`
	Documents []document.Document `json:"documents"`
}

// NewConversation allocates an empty conversation with a fresh identifier.
func NewConversation() Conversation {
	return Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		Documents: []document.Document{},
		CreatedAt: time.Now().UTC(),
	}
}

// DeriveTitle builds the frozen conversation title from the first user
// message, truncating long input.
func DeriveTitle(input string) string {
	runes := []rune(input)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "..."
	}
	return input
}

// Clone returns a copy whose slices are detached from the original.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	out.Documents = append([]document.Document(nil), c.Documents...)
	return out
}
