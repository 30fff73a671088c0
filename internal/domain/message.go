package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a generated answer.
	RoleAssistant Role = "assistant"
)

// Label returns the transcript label used when rendering history.
func (r Role) Label() string {
	if r == RoleUser {
		return "Human"
	}
	return "Assistant"
}

// Message is one conversation turn.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

// NewMessage creates a message with a fresh random ID.
func NewMessage(role Role, content string, at time.Time, sources ...string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
		Sources:   sources,
	}
}
