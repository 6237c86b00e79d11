// Package worker runs background jobs dequeued from Redis.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/pkg/queue"
	"github.com/docamy/backend/pkg/storage"
)

// ArchiveStore is the slice of the conversation store the archiver needs.
type ArchiveStore interface {
	GetByTavusID(ctx context.Context, tavusConversationID string) (*models.Conversation, error)
	UpdateArchive(ctx context.Context, id uuid.UUID, s3URL, s3Key string) error
}

// ArchiveProcessor processes video archive jobs: download the provider's
// video, stream it to S3, record the location on the conversation.
type ArchiveProcessor struct {
	store  ArchiveStore
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

// NewArchiveProcessor creates a video archive processor.
func NewArchiveProcessor(store ArchiveStore, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{store: store, s3: s3, queue: q, logger: logger}
}

// Process executes one video archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeVideoArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.VideoArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	cv, err := p.store.GetByTavusID(ctx, payload.TavusConversationID)
	if err != nil {
		return fmt.Errorf("conversation not found: %s", payload.TavusConversationID)
	}
	if cv.S3Key != "" {
		p.logger.Info("conversation already archived", zap.String("conversation_id", cv.ID.String()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.VideoURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.VideoKey(payload.TavusConversationID, cv.ID.String())

	s3URL, err := p.s3.Upload(ctx, p.s3.VideosBucket(), key, contentType, resp.Body)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.store.UpdateArchive(ctx, cv.ID, s3URL, key); err != nil {
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("video archive completed",
		zap.String("conversation_id", cv.ID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
