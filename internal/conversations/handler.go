package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docamy/backend/internal/middleware"
	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/internal/tavus"
	"github.com/docamy/backend/pkg/response"
	"github.com/docamy/backend/pkg/storage"
)

// CreateRequest is the body for POST /conversations.
type CreateRequest struct {
	ReplicaID  string                        `json:"replica_id" binding:"required,min=5"`
	PersonaID  string                        `json:"persona_id" binding:"required,min=5"`
	Name       string                        `json:"name"`
	Properties *tavus.ConversationProperties `json:"properties"`
}

// MessageRequest is the body for POST /conversations/:id/messages.
type MessageRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

// Handler handles conversation HTTP endpoints.
type Handler struct {
	repo   *Repository
	client *tavus.Client
	poller *Poller
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a conversations handler. s3 may be nil when archival
// is disabled.
func NewHandler(repo *Repository, client *tavus.Client, poller *Poller, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, client: client, poller: poller, s3: s3, logger: logger}
}

// Create handles POST /conversations: registers the conversation with the
// provider, persists it, and starts the status poller. Creation never
// blocks on polling.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.client.CreateConversation(c.Request.Context(), req.ReplicaID, req.PersonaID, req.Properties)
	if err != nil {
		h.logger.Error("provider create failed", zap.Error(err))
		response.ServiceUnavailable(c, "conversation provider unavailable")
		return
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Conversation %s", time.Now().Format("2006-01-02 15:04"))
	}

	cv := &models.Conversation{
		UserID:              userID(c),
		TavusConversationID: result.ConversationID,
		Name:                name,
		ReplicaID:           req.ReplicaID,
		PersonaID:           req.PersonaID,
		Status:              models.StatusActive,
		StreamURL:           result.StreamURL,
	}
	if err := h.repo.Create(c.Request.Context(), cv); err != nil {
		h.logger.Error("create conversation failed", zap.Error(err),
			zap.String("tavus_conversation_id", result.ConversationID))
		response.Internal(c, "failed to create conversation")
		return
	}

	go h.poller.Watch(context.Background(), cv.TavusConversationID)

	response.Created(c, cv)
}

// GetByID handles GET /conversations/:id. The stored record is merged with
// the provider's live status when the provider is reachable; otherwise the
// stored state stands.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	cv, err := h.repo.GetByID(c.Request.Context(), id, userID(c))
	if err != nil {
		response.NotFound(c, "conversation not found")
		return
	}

	if live, err := h.client.GetStatus(c.Request.Context(), cv.TavusConversationID); err == nil {
		if !cv.Status.IsTerminal() && live.Status != "" {
			cv.Status = models.ConversationStatus(live.Status)
		}
		if cv.VideoURL == "" {
			cv.VideoURL = live.VideoURL
		}
		if cv.StreamURL == "" {
			cv.StreamURL = live.StreamURL
		}
	}

	response.OK(c, cv)
}

// List handles GET /conversations with skip/limit pagination.
func (h *Handler) List(c *gin.Context) {
	skip := intQuery(c, "skip", 0)
	limit := intQuery(c, "limit", 20)

	list, err := h.repo.List(c.Request.Context(), userID(c), skip, limit)
	if err != nil {
		response.Internal(c, "failed to list conversations")
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /conversations/:id. Provider-side deletion is
// attempted first; a provider failure does not keep the local record
// alive.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	cv, err := h.repo.GetByID(c.Request.Context(), id, userID(c))
	if err != nil {
		response.NotFound(c, "conversation not found")
		return
	}

	if err := h.client.DeleteConversation(c.Request.Context(), cv.TavusConversationID); err != nil {
		h.logger.Warn("provider delete failed", zap.Error(err),
			zap.String("tavus_conversation_id", cv.TavusConversationID))
	}

	if err := h.repo.Delete(c.Request.Context(), id, userID(c)); err != nil {
		response.Internal(c, "failed to delete conversation")
		return
	}
	response.OK(c, gin.H{"message": "conversation deleted"})
}

// SendMessage handles POST /conversations/:id/messages: relays the text to
// the provider and records both sides of the exchange.
func (h *Handler) SendMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	cv, err := h.repo.GetByID(c.Request.Context(), id, userID(c))
	if err != nil {
		response.NotFound(c, "conversation not found")
		return
	}

	result, err := h.client.SendMessage(c.Request.Context(), cv.TavusConversationID, req.Text)
	if err != nil {
		h.logger.Error("provider message failed", zap.Error(err))
		response.ServiceUnavailable(c, "conversation provider unavailable")
		return
	}

	msg := &models.Message{
		ConversationID: cv.ID,
		Content:        req.Text,
		Type:           models.MessageTypeUser,
	}
	if err := h.repo.AddMessage(c.Request.Context(), msg); err != nil {
		response.Internal(c, "failed to store message")
		return
	}

	if result.ResponseText != "" {
		reply := &models.Message{
			ConversationID: cv.ID,
			Content:        result.ResponseText,
			Type:           models.MessageTypeAssistant,
			VideoURL:       result.VideoURL,
			StreamURL:      result.StreamURL,
		}
		if err := h.repo.AddMessage(c.Request.Context(), reply); err != nil {
			h.logger.Error("store assistant message failed", zap.Error(err))
		}
	}

	response.OK(c, gin.H{
		"id":         msg.ID,
		"content":    msg.Content,
		"type":       msg.Type,
		"timestamp":  msg.CreatedAt,
		"video_url":  result.VideoURL,
		"stream_url": result.StreamURL,
		"status":     result.Status,
	})
}

// ListMessages handles GET /conversations/:id/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	list, err := h.repo.ListMessages(c.Request.Context(), id, userID(c), intQuery(c, "skip", 0), intQuery(c, "limit", 50))
	if err != nil {
		response.NotFound(c, "conversation not found")
		return
	}
	response.OK(c, list)
}

// ArchiveURL handles GET /conversations/:id/archive-url: a presigned
// download link for the S3-archived video.
func (h *Handler) ArchiveURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "archival not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}

	cv, err := h.repo.GetByID(c.Request.Context(), id, userID(c))
	if err != nil {
		response.NotFound(c, "conversation not found")
		return
	}
	if cv.S3Key == "" {
		response.NotFound(c, "no archived video")
		return
	}

	url, err := h.s3.PresignDownload(c.Request.Context(), h.s3.VideosBucket(), cv.S3Key)
	if err != nil {
		response.Internal(c, "failed to sign download url")
		return
	}
	response.OK(c, gin.H{"url": url})
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.repo.GetStats(c.Request.Context(), userID(c))
	if err != nil {
		response.Internal(c, "failed to compute stats")
		return
	}
	response.OK(c, stats)
}

// ListReplicas handles GET /replicas.
func (h *Handler) ListReplicas(c *gin.Context) {
	replicas, err := h.client.ListReplicas(c.Request.Context())
	if err != nil {
		response.ServiceUnavailable(c, "conversation provider unavailable")
		return
	}
	response.OK(c, replicas)
}

// ListPersonas handles GET /personas.
func (h *Handler) ListPersonas(c *gin.Context) {
	personas, err := h.client.ListPersonas(c.Request.Context())
	if err != nil {
		response.ServiceUnavailable(c, "conversation provider unavailable")
		return
	}
	response.OK(c, personas)
}

func userID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(middleware.ContextUserID)
	id, _ := v.(uuid.UUID)
	return id
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
