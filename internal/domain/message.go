package domain

import (
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks an athlete-authored message.
	RoleUser Role = "user"
	// RoleAssistant marks a coach reply.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage is one entry of a conversation transcript.
// Messages are immutable once appended.
type ChatMessage struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"` // data URLs
	CreatedAt time.Time `json:"created_at"`
}

// ConversationKey identifies one conversation (a user's browser tab session).
type ConversationKey struct {
	UserID    string
	SessionID string
}

// RecentMessages returns at most the last n messages.
func RecentMessages(msgs []ChatMessage, n int) []ChatMessage {
	if n <= 0 {
		return nil
	}
	if n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
