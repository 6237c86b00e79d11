package models

import "time"

// WebhookEventType is the kind of a Tavus webhook delivery.
type WebhookEventType string

const (
	EventVideoGenerated WebhookEventType = "conversation.video_generated"
	EventCompleted      WebhookEventType = "conversation.completed"
	EventError          WebhookEventType = "conversation.error"
)

// Valid reports whether the event type is one the processor understands.
func (t WebhookEventType) Valid() bool {
	switch t {
	case EventVideoGenerated, EventCompleted, EventError:
		return true
	}
	return false
}

// WebhookEventData carries the kind-specific payload fields.
type WebhookEventData struct {
	VideoURL     string `json:"video_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Status       string `json:"status,omitempty"`
}

// WebhookEvent is one authenticated fact about a conversation, delivered by
// the provider. ConversationID is the Tavus-side identifier.
type WebhookEvent struct {
	EventType      WebhookEventType `json:"event_type"`
	ConversationID string           `json:"conversation_id"`
	Data           WebhookEventData `json:"data"`
	Timestamp      time.Time        `json:"timestamp,omitempty"`
}
