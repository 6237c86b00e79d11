package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docamy/backend/internal/models"
)

// ErrNotFound is returned when a conversation does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("conversation not found")

const conversationColumns = `id, user_id, tavus_conversation_id, name, replica_id, persona_id, status,
	COALESCE(video_url,''), COALESCE(stream_url,''), COALESCE(s3_url,''), COALESCE(s3_key,''), created_at, updated_at`

// Repository is the conversation store: it owns every mutation of a
// conversation row. Status updates are single atomic statements or
// row-locked transactions; no caller reads then writes across calls.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a conversations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var cv models.Conversation
	err := row.Scan(&cv.ID, &cv.UserID, &cv.TavusConversationID, &cv.Name, &cv.ReplicaID, &cv.PersonaID,
		&cv.Status, &cv.VideoURL, &cv.StreamURL, &cv.S3URL, &cv.S3Key, &cv.CreatedAt, &cv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

// Create inserts a new conversation row. The tavus_conversation_id unique
// constraint rejects a second registration of the same provider id.
func (r *Repository) Create(ctx context.Context, cv *models.Conversation) error {
	const q = `INSERT INTO conversations (user_id, tavus_conversation_id, name, replica_id, persona_id, status, stream_url)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, cv.UserID, cv.TavusConversationID, cv.Name, cv.ReplicaID, cv.PersonaID, cv.Status, cv.StreamURL).
		Scan(&cv.ID, &cv.CreatedAt, &cv.UpdatedAt)
}

// GetByID returns a conversation owned by the given user.
func (r *Repository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 AND user_id = $2`
	cv, err := scanConversation(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cv, nil
}

// GetByTavusID returns a conversation by its provider identifier.
func (r *Repository) GetByTavusID(ctx context.Context, tavusConversationID string) (*models.Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE tavus_conversation_id = $1`
	cv, err := scanConversation(r.pool.QueryRow(ctx, q, tavusConversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cv, nil
}

// List returns a user's conversations, most recently updated first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, skip, limit int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	q := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE user_id = $1 ORDER BY updated_at DESC OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, q, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Conversation
	for rows.Next() {
		cv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *cv)
	}
	return list, rows.Err()
}

// Delete removes a conversation and its messages, owner-scoped.
func (r *Repository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// ApplyPollStatus writes a terminal status observed by the poller. The
// update is one conditional statement guarded on the row still being
// non-terminal, so a poller racing a webhook writer can never move a
// conversation backward or interleave a partial update. Returns the
// updated conversation, or nil when the guard rejected the write (already
// terminal, or unknown id).
func (r *Repository) ApplyPollStatus(ctx context.Context, tavusConversationID string, status models.ConversationStatus, videoURL string) (*models.Conversation, error) {
	q := `UPDATE conversations
		SET status = $2, video_url = COALESCE(NULLIF($3,''), video_url), updated_at = NOW()
		WHERE tavus_conversation_id = $1 AND status NOT IN ('completed','error')
		RETURNING ` + conversationColumns
	cv, err := scanConversation(r.pool.QueryRow(ctx, q, tavusConversationID, status, videoURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cv, nil
}

// EventResult reports what ApplyEvent did. Conversation is nil for
// OutcomeUnknown.
type EventResult struct {
	Outcome      Outcome
	Conversation *models.Conversation
}

// ApplyEvent records a webhook event in the append-only log and applies its
// state transition, all in one transaction: the row is locked, the
// transition table consulted, and the event marked processed before commit.
// A crash leaves either both writes or neither. Duplicate deliveries land
// in the log again but change no conversation state.
func (r *Repository) ApplyEvent(ctx context.Context, event *models.WebhookEvent) (*EventResult, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var eventID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO webhook_events (event_type, conversation_id, data) VALUES ($1, $2, $3) RETURNING id`,
		event.EventType, event.ConversationID, string(data)).Scan(&eventID)
	if err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}

	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE tavus_conversation_id = $1 FOR UPDATE`
	cv, err := scanConversation(tx.QueryRow(ctx, q, event.ConversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Webhook raced ahead of the creation commit, or the
			// conversation was deleted. Keep the audit record, drop the event.
			if err := markProcessed(ctx, tx, eventID); err != nil {
				return nil, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, fmt.Errorf("commit: %w", err)
			}
			return &EventResult{Outcome: OutcomeUnknown}, nil
		}
		return nil, err
	}

	tr := NextState(cv.Status, cv.VideoURL != "", event.EventType, event.Data.VideoURL)
	outcome := OutcomeIgnored
	if tr.Changed {
		uq := `UPDATE conversations
			SET status = $2, video_url = COALESCE(NULLIF($3,''), video_url), updated_at = NOW()
			WHERE id = $1
			RETURNING ` + conversationColumns
		cv, err = scanConversation(tx.QueryRow(ctx, uq, cv.ID, tr.Next, tr.VideoURL))
		if err != nil {
			return nil, fmt.Errorf("apply transition: %w", err)
		}
		outcome = OutcomeApplied
	}

	if err := markProcessed(ctx, tx, eventID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &EventResult{Outcome: outcome, Conversation: cv}, nil
}

func markProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `UPDATE webhook_events SET processed = TRUE WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// UpdateArchive records the S3 location of an archived video.
func (r *Repository) UpdateArchive(ctx context.Context, id uuid.UUID, s3URL, s3Key string) error {
	const q = `UPDATE conversations SET s3_url = $2, s3_key = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, s3URL, s3Key)
	return err
}

// AddMessage inserts a message and bumps the conversation's updated_at.
func (r *Repository) AddMessage(ctx context.Context, msg *models.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO messages (conversation_id, content, message_type, video_url, stream_url)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''))
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, msg.ConversationID, msg.Content, msg.Type, msg.VideoURL, msg.StreamURL).
		Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, msg.ConversationID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListMessages returns a conversation's messages in chronological order,
// owner-scoped.
func (r *Repository) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, skip, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	if _, err := r.GetByID(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	const q = `SELECT id, conversation_id, content, message_type, COALESCE(video_url,''), COALESCE(stream_url,''), created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, q, conversationID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.Type, &m.VideoURL, &m.StreamURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Stats summarizes a user's conversation activity.
type Stats struct {
	TotalConversations  int     `json:"total_conversations"`
	ActiveConversations int     `json:"active_conversations"`
	TotalMessages       int     `json:"total_messages"`
	AvgMessagesPerConv  float64 `json:"avg_conversation_length"`
}

// GetStats returns conversation statistics for a user.
func (r *Repository) GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	const q = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'active'),
		COALESCE((SELECT COUNT(*) FROM messages m JOIN conversations c2 ON m.conversation_id = c2.id WHERE c2.user_id = $1), 0)
		FROM conversations WHERE user_id = $1`
	var s Stats
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&s.TotalConversations, &s.ActiveConversations, &s.TotalMessages); err != nil {
		return nil, err
	}
	if s.TotalConversations > 0 {
		s.AvgMessagesPerConv = float64(s.TotalMessages) / float64(s.TotalConversations)
	}
	return &s, nil
}
