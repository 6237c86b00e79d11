// Package tavus is the client for the Tavus conversation API and the
// authenticator for its webhook deliveries.
package tavus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable is returned when the Tavus API cannot be reached or
	// answers with an error status.
	ErrUnavailable = errors.New("tavus api unavailable")
	// ErrTimeout is returned when a Tavus API call exceeds its deadline.
	ErrTimeout = errors.New("tavus api timed out")
)

// Client calls the Tavus REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Tavus API client.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// ConversationProperties tunes a new conversation.
type ConversationProperties struct {
	MaxDuration      int    `json:"max_duration,omitempty"`
	Language         string `json:"language,omitempty"`
	EnableStreaming  bool   `json:"enable_streaming,omitempty"`
	VideoChatEnabled bool   `json:"video_chat_enabled,omitempty"`
	CallbackURL      string `json:"callback_url,omitempty"`
}

// CreateConversationResult is the provider's answer to a create call.
type CreateConversationResult struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	VideoURL       string `json:"video_url"`
	StreamURL      string `json:"stream_url"`
}

// StatusResult is the provider's current view of a conversation.
type StatusResult struct {
	Status    string `json:"status"`
	VideoURL  string `json:"video_url"`
	StreamURL string `json:"stream_url"`
}

// MessageResult is the provider's answer to a sent message.
type MessageResult struct {
	ResponseText string `json:"response_text"`
	VideoURL     string `json:"video_url"`
	StreamURL    string `json:"stream_url"`
	Status       string `json:"status"`
}

// Replica is a Tavus replica listing entry.
type Replica struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	VoiceID   string `json:"voice_id,omitempty"`
	Status    string `json:"status"`
}

// Persona is a Tavus persona listing entry.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Context      string `json:"context,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Status       string `json:"status"`
}

// Ping reports whether the Tavus API is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) bool {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/replicas", nil, &out)
	return err == nil
}

// CreateConversation starts a new provider-hosted conversation.
func (c *Client) CreateConversation(ctx context.Context, replicaID, personaID string, props *ConversationProperties) (*CreateConversationResult, error) {
	payload := map[string]interface{}{
		"replica_id": replicaID,
		"persona_id": personaID,
	}
	if props != nil {
		payload["properties"] = props
	}
	var out CreateConversationResult
	if err := c.do(ctx, http.MethodPost, "/conversations", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage relays a user message into a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (*MessageResult, error) {
	var out MessageResult
	if err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID, map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus fetches the provider's current status for a conversation.
func (c *Client) GetStatus(ctx context.Context, conversationID string) (*StatusResult, error) {
	var out StatusResult
	if err := c.do(ctx, http.MethodGet, "/conversations/"+conversationID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation from the provider.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+conversationID, nil, nil)
}

// ListReplicas returns the available replicas.
func (c *Client) ListReplicas(ctx context.Context) ([]Replica, error) {
	var out struct {
		Data []Replica `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/replicas", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListPersonas returns the available personas.
func (c *Client) ListPersonas(ctx context.Context) ([]Persona, error) {
	var out struct {
		Data []Persona `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/personas", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		c.logger.Warn("tavus api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return e.Message
	}
	return string(raw)
}
