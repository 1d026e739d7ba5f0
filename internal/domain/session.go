package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession represents a conversation thread held in memory
type ChatSession struct {
	ID        uuid.UUID     `json:"id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share the store's message slice
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	messages := make([]ChatMessage, len(s.Messages))
	copy(messages, s.Messages)
	return &ChatSession{
		ID:        s.ID,
		Messages:  messages,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
