package conversations

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/internal/tavus"
	"github.com/docamy/backend/pkg/queue"
)

// StatusClient queries the provider for a conversation's current status.
type StatusClient interface {
	GetStatus(ctx context.Context, conversationID string) (*tavus.StatusResult, error)
}

// PollStore writes a poll-observed terminal status.
type PollStore interface {
	ApplyPollStatus(ctx context.Context, tavusConversationID string, status models.ConversationStatus, videoURL string) (*models.Conversation, error)
}

// Poller watches one conversation at a time until the provider reports a
// terminal status or the attempt budget runs out. One Watch call per
// created conversation, each on its own goroutine; the store's conditional
// write arbitrates races with the webhook channel.
type Poller struct {
	client      StatusClient
	store       PollStore
	archive     ArchiveEnqueuer
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewPoller creates a status poller. archive may be nil.
func NewPoller(client StatusClient, store PollStore, archive ArchiveEnqueuer, interval time.Duration, maxAttempts int, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	return &Poller{
		client:      client,
		store:       store,
		archive:     archive,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Watch polls until terminal status, provider failure, attempt ceiling, or
// ctx cancellation. It never returns an error: there is no caller waiting
// on this background task, so failures are logged and swallowed. Hitting
// the ceiling leaves the conversation in its last-known state on purpose.
func (p *Poller) Watch(ctx context.Context, tavusConversationID string) {
	log := p.logger.With(zap.String("tavus_conversation_id", tavusConversationID))

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.client.GetStatus(ctx, tavusConversationID)
		if err != nil {
			log.Warn("status poll failed, giving up", zap.Int("attempt", attempt), zap.Error(err))
			return
		}

		if terminal, ok := pollStatus(status.Status); ok {
			cv, err := p.store.ApplyPollStatus(ctx, tavusConversationID, terminal, status.VideoURL)
			if err != nil {
				log.Error("apply poll status failed", zap.Error(err))
				return
			}
			if cv == nil {
				// Webhook channel already landed a terminal state.
				log.Debug("poll result superseded")
				return
			}
			log.Info("conversation reached terminal status via poll",
				zap.String("status", string(cv.Status)), zap.Int("attempt", attempt))
			p.maybeArchive(ctx, cv, log)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}

	log.Info("status polling exhausted attempts", zap.Int("max_attempts", p.maxAttempts))
}

func (p *Poller) maybeArchive(ctx context.Context, cv *models.Conversation, log *zap.Logger) {
	if p.archive == nil || cv.Status != models.StatusCompleted || cv.VideoURL == "" || cv.S3Key != "" {
		return
	}
	if err := p.archive.EnqueueVideoArchive(ctx, queue.VideoArchivePayload{
		ConversationID:      cv.ID,
		TavusConversationID: cv.TavusConversationID,
		VideoURL:            cv.VideoURL,
	}); err != nil {
		log.Warn("enqueue video archive failed", zap.Error(err))
	}
}
