package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/docamy/backend/internal/models"
)

// Verifier rejection reasons. The HTTP layer collapses all of these into a
// uniform 401 so callers cannot probe which check failed.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("credential expired")
	ErrInactiveAccount   = errors.New("account inactive")
)

// UserStore resolves accounts for authenticated credentials.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// KeyStore resolves API keys by hash. A successful lookup must atomically
// record last_used; a miss must write nothing.
type KeyStore interface {
	TouchAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
}

// Verifier authenticates a presented bearer credential, which is either a
// signed JWT or an opaque docamy_-prefixed API key.
type Verifier struct {
	jwt   *JWTService
	users UserStore
	keys  KeyStore
}

// NewVerifier creates a credential verifier.
func NewVerifier(jwt *JWTService, users UserStore, keys KeyStore) *Verifier {
	return &Verifier{jwt: jwt, users: users, keys: keys}
}

// Authenticate resolves a credential to an active user account.
// JWTs are tried first; credentials carrying the API key prefix take the
// hashed-key path. Token validity is checked statelessly, then the subject
// account must exist and be active.
func (v *Verifier) Authenticate(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	if HasKeyPrefix(credential) {
		return v.authenticateKey(ctx, credential)
	}

	claims, err := v.jwt.Validate(credential)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrInvalidCredential
	}

	user, err := v.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	return user, nil
}

func (v *Verifier) authenticateKey(ctx context.Context, credential string) (*models.User, error) {
	key, err := v.keys.TouchAPIKeyByHash(ctx, HashKey(credential))
	if err != nil {
		return nil, ErrInvalidCredential
	}
	user, err := v.users.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	return user, nil
}
