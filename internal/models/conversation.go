package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationStatus is the lifecycle status of a conversation.
type ConversationStatus string

const (
	StatusActive     ConversationStatus = "active"
	StatusProcessing ConversationStatus = "processing"
	StatusCompleted  ConversationStatus = "completed"
	StatusError      ConversationStatus = "error"
)

// IsTerminal reports whether no further status transition is permitted.
func (s ConversationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Conversation mirrors a Tavus-hosted conversation. The Tavus conversation
// ID is assigned once at creation and never changes; status moves only
// forward (terminal states stick).
type Conversation struct {
	ID                  uuid.UUID          `json:"id"`
	UserID              uuid.UUID          `json:"user_id"`
	TavusConversationID string             `json:"tavus_conversation_id"`
	Name                string             `json:"name"`
	ReplicaID           string             `json:"replica_id"`
	PersonaID           string             `json:"persona_id"`
	Status              ConversationStatus `json:"status"`
	VideoURL            string             `json:"video_url,omitempty"`
	StreamURL           string             `json:"stream_url,omitempty"`
	S3URL               string             `json:"s3_url,omitempty"`
	S3Key               string             `json:"s3_key,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}
