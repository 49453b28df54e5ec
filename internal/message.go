package internal

import "time"

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one chat turn
type ConversationMessage struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Pending   bool      `json:"pending,omitempty" yaml:"pending,omitempty"`
}

// Transcript is a read-only copy of a session, used by exporters
type Transcript struct {
	DocumentID string                `json:"document_id" yaml:"document_id"`
	Filename   string                `json:"filename,omitempty" yaml:"filename,omitempty"`
	ExportedAt time.Time             `json:"exported_at" yaml:"exported_at"`
	Messages   []ConversationMessage `json:"messages" yaml:"messages"`
}
