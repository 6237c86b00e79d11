package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docamy/backend/internal/models"
)

// Repository handles user and API key persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, COALESCE(full_name,''), is_active, created_at, updated_at
		FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, COALESCE(full_name,''), is_active, created_at, updated_at
		FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name)
		VALUES ($1, $2, NULLIF($3,''))
		RETURNING id, email, password_hash, COALESCE(full_name,''), is_active, created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, fullName).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateAPIKey inserts a new API key record for the given key hash.
func (r *Repository) CreateAPIKey(ctx context.Context, userID uuid.UUID, keyHash, name string, expiresAt *time.Time) (*models.APIKey, error) {
	const q = `INSERT INTO api_keys (user_id, key_hash, name, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, key_hash, name, is_active, last_used, expires_at, created_at`
	var k models.APIKey
	err := r.pool.QueryRow(ctx, q, userID, keyHash, name, expiresAt).
		Scan(&k.ID, &k.UserID, &k.KeyHash, &k.Name, &k.IsActive, &k.LastUsed, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListAPIKeys returns a user's API key records (hashes only, no key material).
func (r *Repository) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	const q = `SELECT id, user_id, key_hash, name, is_active, last_used, expires_at, created_at
		FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.Name, &k.IsActive, &k.LastUsed, &k.ExpiresAt, &k.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, k)
	}
	return list, rows.Err()
}

// RevokeAPIKey deactivates a key owned by the given user.
func (r *Repository) RevokeAPIKey(ctx context.Context, userID, keyID uuid.UUID) error {
	const q = `UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, keyID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// TouchAPIKeyByHash looks up an active, unexpired key by hash and records
// last_used, in a single statement. A miss (unknown, revoked or expired
// hash) performs no write at all.
func (r *Repository) TouchAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	const q = `UPDATE api_keys SET last_used = NOW()
		WHERE key_hash = $1 AND is_active AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING id, user_id, key_hash, name, is_active, last_used, expires_at, created_at`
	var k models.APIKey
	err := r.pool.QueryRow(ctx, q, keyHash).
		Scan(&k.ID, &k.UserID, &k.KeyHash, &k.Name, &k.IsActive, &k.LastUsed, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	return &k, nil
}
