package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes user input from assistant replies.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
)

// Message is a single exchange within a conversation.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	VideoURL       string      `json:"video_url,omitempty"`
	StreamURL      string      `json:"stream_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
