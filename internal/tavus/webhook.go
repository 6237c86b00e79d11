package tavus

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignaturePrefix is the algorithm prefix Tavus puts on webhook signatures.
const SignaturePrefix = "sha256="

// WebhookAuthenticator verifies the HMAC signature on inbound webhook
// payloads against the shared webhook secret.
type WebhookAuthenticator struct {
	secret []byte
}

// NewWebhookAuthenticator creates an authenticator for the given secret.
func NewWebhookAuthenticator(secret string) *WebhookAuthenticator {
	return &WebhookAuthenticator{secret: []byte(secret)}
}

// Verify checks the presented signature against HMAC-SHA256 of the exact
// raw body bytes. It must run before any JSON parsing: re-serialization is
// not guaranteed to reproduce what was signed. Returns false when the
// signature is absent or the secret is unconfigured.
func (a *WebhookAuthenticator) Verify(rawBody []byte, signature string) bool {
	if signature == "" || len(a.secret) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write(rawBody)
	expected := SignaturePrefix + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
