package conversations

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/pkg/queue"
)

// EventStore applies one webhook event transactionally.
type EventStore interface {
	ApplyEvent(ctx context.Context, event *models.WebhookEvent) (*EventResult, error)
}

// ArchiveEnqueuer schedules background archival of a completed video.
type ArchiveEnqueuer interface {
	EnqueueVideoArchive(ctx context.Context, payload queue.VideoArchivePayload) error
}

// Processor consumes authenticated webhook events and applies their state
// transitions exactly once. It does not retry: a store failure surfaces to
// the HTTP layer as a non-2xx so the provider's redelivery covers it.
type Processor struct {
	store   EventStore
	archive ArchiveEnqueuer
	logger  *zap.Logger
}

// NewProcessor creates a webhook event processor. archive may be nil when
// S3 archival is disabled.
func NewProcessor(store EventStore, archive ArchiveEnqueuer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{store: store, archive: archive, logger: logger}
}

// Process classifies and applies one event. Unknown conversations are
// reported as OutcomeUnknown, not errors: a webhook may legitimately
// arrive before the creation transaction commits.
func (p *Processor) Process(ctx context.Context, event *models.WebhookEvent) (Outcome, error) {
	if !event.EventType.Valid() {
		return OutcomeIgnored, fmt.Errorf("unknown event type %q", event.EventType)
	}

	result, err := p.store.ApplyEvent(ctx, event)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("apply event: %w", err)
	}

	p.logger.Info("webhook event processed",
		zap.String("event_type", string(event.EventType)),
		zap.String("tavus_conversation_id", event.ConversationID),
		zap.String("outcome", result.Outcome.String()))

	if result.Outcome == OutcomeApplied && p.archive != nil {
		cv := result.Conversation
		if cv.Status == models.StatusCompleted && cv.VideoURL != "" && cv.S3Key == "" {
			if err := p.archive.EnqueueVideoArchive(ctx, queue.VideoArchivePayload{
				ConversationID:      cv.ID,
				TavusConversationID: cv.TavusConversationID,
				VideoURL:            cv.VideoURL,
			}); err != nil {
				// Archival is best-effort; the conversation state is already committed.
				p.logger.Warn("enqueue video archive failed", zap.Error(err),
					zap.String("conversation_id", cv.ID.String()))
			}
		}
	}

	return result.Outcome, nil
}
