package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docamy/backend/internal/models"
)

type fakeVerifier struct {
	user        *models.User
	err         error
	credentials []string
}

func (f *fakeVerifier) Authenticate(_ context.Context, credential string) (*models.User, error) {
	f.credentials = append(f.credentials, credential)
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type contextValues struct {
	userID interface{}
	email  interface{}
}

func authRequest(v CredentialVerifier, header string) (*httptest.ResponseRecorder, *contextValues) {
	gin.SetMode(gin.TestMode)
	var captured *contextValues
	router := gin.New()
	router.GET("/ping", Auth(v), func(c *gin.Context) {
		id, _ := c.Get(ContextUserID)
		email, _ := c.Get(ContextUserEmail)
		captured = &contextValues{userID: id, email: email}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, captured
}

func TestAuth_Success(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@example.com", IsActive: true}
	v := &fakeVerifier{user: user}

	w, vals := authRequest(v, "Bearer some-credential")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"some-credential"}, v.credentials)
	require.NotNil(t, vals)
	assert.Equal(t, user.ID, vals.userID)
	assert.Equal(t, user.Email, vals.email)
}

func TestAuth_MissingHeader(t *testing.T) {
	v := &fakeVerifier{}
	w, _ := authRequest(v, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, v.credentials)
}

func TestAuth_BadScheme(t *testing.T) {
	v := &fakeVerifier{}
	w, _ := authRequest(v, "Basic dXNlcjpwYXNz")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, v.credentials)
}

func TestAuth_LowercaseBearerAccepted(t *testing.T) {
	v := &fakeVerifier{user: &models.User{ID: uuid.New(), IsActive: true}}
	w, _ := authRequest(v, "bearer some-credential")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_UniformRejectionBody(t *testing.T) {
	// Every failure mode yields the identical response so callers cannot
	// probe which check failed.
	missing, _ := authRequest(&fakeVerifier{}, "")
	badScheme, _ := authRequest(&fakeVerifier{}, "Token x")
	rejected, _ := authRequest(&fakeVerifier{err: assert.AnError}, "Bearer bad")

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, missing.Body.String(), badScheme.Body.String())
	assert.Equal(t, missing.Body.String(), rejected.Body.String())
	assert.Contains(t, missing.Body.String(), "could not validate credentials")
}
