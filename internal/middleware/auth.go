package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docamy/backend/internal/models"
	"github.com/docamy/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// CredentialVerifier resolves a bearer credential (JWT or API key) to a user.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, credential string) (*models.User, error)
}

// Auth returns a middleware that authenticates the Authorization header and
// sets the resolved user in context. The rejection body is identical for
// every failure mode; the specific reason is never exposed to the caller.
func Auth(verifier CredentialVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "could not validate credentials")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "could not validate credentials")
			c.Abort()
			return
		}

		user, err := verifier.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Unauthorized(c, "could not validate credentials")
			c.Abort()
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUserEmail, user.Email)
		c.Next()
	}
}
