package conversations

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/internal/tavus"
)

type fakeEventProcessor struct {
	outcome Outcome
	err     error
	events  []*models.WebhookEvent
}

func (f *fakeEventProcessor) Process(_ context.Context, event *models.WebhookEvent) (Outcome, error) {
	f.events = append(f.events, event)
	return f.outcome, f.err
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/tavus", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/tavus", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_ValidEvent(t *testing.T) {
	const secret = "whsec-test"
	processor := &fakeEventProcessor{outcome: OutcomeApplied}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator(secret), processor, nil)

	body := []byte(`{"event_type":"conversation.completed","conversation_id":"tv-1"}`)
	w := postWebhook(h, body, sign(secret, body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"applied"`)
	if assert.Len(t, processor.events, 1) {
		assert.Equal(t, models.EventCompleted, processor.events[0].EventType)
		assert.Equal(t, "tv-1", processor.events[0].ConversationID)
	}
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	processor := &fakeEventProcessor{}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator("whsec-test"), processor, nil)

	body := []byte(`{"event_type":"conversation.completed","conversation_id":"tv-1"}`)
	w := postWebhook(h, body, sign("other-secret", body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, processor.events, "unauthenticated payloads are never parsed or applied")
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	processor := &fakeEventProcessor{}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator("whsec-test"), processor, nil)

	w := postWebhook(h, []byte(`{"event_type":"conversation.completed","conversation_id":"tv-1"}`), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, processor.events)
}

func TestWebhookHandler_TamperedBody(t *testing.T) {
	const secret = "whsec-test"
	processor := &fakeEventProcessor{}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator(secret), processor, nil)

	signed := []byte(`{"event_type":"conversation.completed","conversation_id":"tv-1"}`)
	tampered := []byte(`{"event_type":"conversation.completed","conversation_id":"tv-2"}`)
	w := postWebhook(h, tampered, sign(secret, signed))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, processor.events)
}

func TestWebhookHandler_MalformedJSON(t *testing.T) {
	const secret = "whsec-test"
	processor := &fakeEventProcessor{}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator(secret), processor, nil)

	body := []byte(`{not json`)
	w := postWebhook(h, body, sign(secret, body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, processor.events)
}

func TestWebhookHandler_InvalidEvent(t *testing.T) {
	const secret = "whsec-test"
	processor := &fakeEventProcessor{}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator(secret), processor, nil)

	// Unknown event type.
	body := []byte(`{"event_type":"conversation.renamed","conversation_id":"tv-1"}`)
	w := postWebhook(h, body, sign(secret, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing conversation id.
	body = []byte(`{"event_type":"conversation.completed"}`)
	w = postWebhook(h, body, sign(secret, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, processor.events)
}

func TestWebhookHandler_ProcessorErrorReturns500(t *testing.T) {
	const secret = "whsec-test"
	processor := &fakeEventProcessor{err: errors.New("store unavailable")}
	h := NewWebhookHandler(tavus.NewWebhookAuthenticator(secret), processor, nil)

	body := []byte(`{"event_type":"conversation.completed","conversation_id":"tv-1"}`)
	w := postWebhook(h, body, sign(secret, body))

	// Non-2xx makes the provider redeliver.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
