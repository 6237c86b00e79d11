package conversations

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/pkg/response"
)

// SignatureHeader carries the HMAC signature on Tavus webhook deliveries.
const SignatureHeader = "X-Tavus-Signature"

// PayloadVerifier authenticates raw webhook bytes.
type PayloadVerifier interface {
	Verify(rawBody []byte, signature string) bool
}

// EventProcessor applies one parsed webhook event.
type EventProcessor interface {
	Process(ctx context.Context, event *models.WebhookEvent) (Outcome, error)
}

// WebhookHandler handles POST /webhooks/tavus.
type WebhookHandler struct {
	auth      PayloadVerifier
	processor EventProcessor
	logger    *zap.Logger
}

// NewWebhookHandler creates the Tavus webhook endpoint handler.
func NewWebhookHandler(auth PayloadVerifier, processor EventProcessor, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{auth: auth, processor: processor, logger: logger}
}

// Handle verifies the signature over the exact bytes received, then parses
// and applies the event. A store failure returns 500 so the provider's
// retry mechanism redelivers; everything else is a 2xx so it does not.
func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}

	if !h.auth.Verify(raw, c.GetHeader(SignatureHeader)) {
		h.logger.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}
	if !event.EventType.Valid() || event.ConversationID == "" {
		response.BadRequest(c, "invalid event")
		return
	}

	outcome, err := h.processor.Process(c.Request.Context(), &event)
	if err != nil {
		h.logger.Error("webhook processing failed", zap.Error(err),
			zap.String("tavus_conversation_id", event.ConversationID))
		response.Internal(c, "failed to process event")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received", "outcome": outcome.String()})
}
