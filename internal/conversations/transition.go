package conversations

import (
	"github.com/docamy/backend/internal/models"
)

// Outcome classifies the effect of applying an inbound event.
type Outcome int

const (
	// OutcomeApplied means the conversation state changed.
	OutcomeApplied Outcome = iota
	// OutcomeIgnored means the event was a no-op (terminal state already
	// reached, or a duplicate delivery).
	OutcomeIgnored
	// OutcomeUnknown means no conversation matches the event's provider id.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUnknown:
		return "unknown_conversation"
	}
	return "invalid"
}

// Transition is the computed effect of one event on one conversation.
// VideoURL is non-empty only when the artifact URL should be written.
type Transition struct {
	Next     models.ConversationStatus
	VideoURL string
	Changed  bool
}

// NextState applies the reconciliation table. Terminal states are sticky:
// once completed or errored, later events of any kind change nothing,
// except that a video_generated delivery may backfill a missing artifact
// URL on a completed conversation. Active and processing are treated
// identically as non-terminal inputs. The table is what makes duplicated
// and reordered deliveries from the webhook and poll channels safe.
func NextState(current models.ConversationStatus, hasVideoURL bool, kind models.WebhookEventType, eventVideoURL string) Transition {
	if current.IsTerminal() {
		if current == models.StatusCompleted && kind == models.EventVideoGenerated &&
			!hasVideoURL && eventVideoURL != "" {
			return Transition{Next: current, VideoURL: eventVideoURL, Changed: true}
		}
		return Transition{Next: current, Changed: false}
	}

	switch kind {
	case models.EventVideoGenerated:
		return Transition{Next: models.StatusCompleted, VideoURL: eventVideoURL, Changed: true}
	case models.EventCompleted:
		return Transition{Next: models.StatusCompleted, Changed: true}
	case models.EventError:
		return Transition{Next: models.StatusError, Changed: true}
	}
	return Transition{Next: current, Changed: false}
}

// pollStatus maps a provider-reported status string onto the lifecycle
// enum. Only completed and error are terminal; anything else keeps polling.
func pollStatus(s string) (models.ConversationStatus, bool) {
	switch models.ConversationStatus(s) {
	case models.StatusCompleted:
		return models.StatusCompleted, true
	case models.StatusError:
		return models.StatusError, true
	}
	return "", false
}
