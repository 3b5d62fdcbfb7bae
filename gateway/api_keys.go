// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// API key format: rmp_live_ followed by 43 URL-safe base64 characters
// (32 random bytes). The stored prefix is the first 12 characters of
// the full key, which lets verification narrow the bcrypt candidate set
// without storing anything recoverable.
const (
	apiKeyPrefix     = "rmp_live_"
	apiKeyRandomLen  = 32
	storedPrefixLen  = 12
	maxActiveKeys    = 10
	apiKeyBcryptCost = 12
)

// GenerateAPIKey produces a new plaintext API key.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, apiKeyRandomLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// keyPreview builds the displayable fragment: first 12 plus last 4.
func keyPreview(plaintext string) string {
	if len(plaintext) < storedPrefixLen+4 {
		return plaintext
	}
	return plaintext[:storedPrefixLen] + "****" + plaintext[len(plaintext)-4:]
}

// APIKeyRepository persists and verifies API keys.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a repository over the given database.
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// CreateKeyParams are the caller-supplied attributes of a new key.
type CreateKeyParams struct {
	Name               string
	Permissions        []string
	RateLimitPerMinute int
	RateLimitPerHour   int
	ExpiresAt          *time.Time
}

// Create mints a new API key for the user. The returned plaintext is
// shown to the caller exactly once and exists nowhere else.
func (r *APIKeyRepository) Create(ctx context.Context, userID string, params CreateKeyParams) (*APIKey, string, error) {
	var active int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rampart_api_keys WHERE user_id = $1 AND active = true
	`, userID).Scan(&active)
	if err != nil {
		return nil, "", fmt.Errorf("failed to count active keys: %w", err)
	}
	if active >= maxActiveKeys {
		return nil, "", ErrKeyLimitReached
	}

	plaintext, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), apiKeyBcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash key: %w", err)
	}

	permissions := params.Permissions
	if len(permissions) == 0 {
		permissions = DefaultKeyPermissions()
	}
	permissionsJSON, err := json.Marshal(permissions)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode permissions: %w", err)
	}

	perMinute := params.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	perHour := params.RateLimitPerHour
	if perHour <= 0 {
		perHour = 1000
	}

	key := &APIKey{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               params.Name,
		Preview:            keyPreview(plaintext),
		Permissions:        permissions,
		RateLimitPerMinute: perMinute,
		RateLimitPerHour:   perHour,
		Active:             true,
		ExpiresAt:          params.ExpiresAt,
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO rampart_api_keys (
			id, user_id, name, key_prefix, key_hash, key_preview,
			permissions, rate_limit_per_minute, rate_limit_per_hour,
			active, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, $10)
		RETURNING created_at
	`, key.ID, userID, key.Name, plaintext[:storedPrefixLen], string(hash),
		key.Preview, permissionsJSON, perMinute, perHour, params.ExpiresAt,
	).Scan(&key.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store key: %w", err)
	}

	return key, plaintext, nil
}

// Verify authenticates a plaintext API key and returns its owner. The
// lookup narrows candidates by the stored prefix, then bcrypt-compares
// each active row, short-circuiting on the first match. All failures
// collapse into ErrUnauthorized.
func (r *APIKeyRepository) Verify(ctx context.Context, plaintext string) (*Principal, error) {
	if len(plaintext) < storedPrefixLen || !strings.HasPrefix(plaintext, apiKeyPrefix) {
		return nil, ErrUnauthorized
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT k.id, k.user_id, k.key_hash, k.permissions, k.expires_at, u.email, u.active
		FROM rampart_api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE k.key_prefix = $1 AND k.active = true
	`, plaintext[:storedPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	for rows.Next() {
		var (
			keyID, userID, hash, email string
			permissionsJSON            []byte
			expiresAt                  sql.NullTime
			userActive                 bool
		)
		if err := rows.Scan(&keyID, &userID, &hash, &permissionsJSON, &expiresAt, &email, &userActive); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}

		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) != nil {
			continue
		}

		// Matched. Expiry and account state are checked only now so the
		// failure is indistinguishable from an unknown key.
		if !userActive {
			return nil, ErrUnauthorized
		}
		if expiresAt.Valid && now.After(expiresAt.Time) {
			return nil, ErrUnauthorized
		}

		var permissions []string
		if err := json.Unmarshal(permissionsJSON, &permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permissions: %w", err)
		}

		go r.touchLastUsed(keyID)

		return &Principal{
			UserID:      userID,
			Email:       email,
			APIKeyID:    keyID,
			Permissions: permissions,
		}, nil
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key rows: %w", err)
	}

	return nil, ErrUnauthorized
}

// touchLastUsed updates the last-used timestamp off the request path.
func (r *APIKeyRepository) touchLastUsed(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE rampart_api_keys SET last_used_at = NOW() WHERE id = $1
	`, keyID); err != nil {
		log.Printf("[KEYS] failed to update last_used_at for %s: %v", keyID, err)
	}
}

// List returns all of the user's keys, newest first.
func (r *APIKeyRepository) List(ctx context.Context, userID string) ([]APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, key_preview, permissions, rate_limit_per_minute,
		       rate_limit_per_hour, active, expires_at, last_used_at, created_at
		FROM rampart_api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var (
			key             APIKey
			permissionsJSON []byte
			expiresAt       sql.NullTime
			lastUsedAt      sql.NullTime
		)
		if err := rows.Scan(&key.ID, &key.Name, &key.Preview, &permissionsJSON,
			&key.RateLimitPerMinute, &key.RateLimitPerHour, &key.Active,
			&expiresAt, &lastUsedAt, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key row: %w", err)
		}
		if err := json.Unmarshal(permissionsJSON, &key.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permissions: %w", err)
		}
		if expiresAt.Valid {
			key.ExpiresAt = &expiresAt.Time
		}
		if lastUsedAt.Valid {
			key.LastUsedAt = &lastUsedAt.Time
		}
		key.UserID = userID
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Revoke soft-deletes a key by clearing its active flag. Keys owned by
// other users are reported as not found.
func (r *APIKeyRepository) Revoke(ctx context.Context, userID, keyID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE rampart_api_keys SET active = false
		WHERE id = $1 AND user_id = $2 AND active = true
	`, keyID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOwned fetches a key, enforcing ownership.
func (r *APIKeyRepository) GetOwned(ctx context.Context, userID, keyID string) (*APIKey, error) {
	keys, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		if keys[i].ID == keyID {
			return &keys[i], nil
		}
	}
	return nil, ErrNotFound
}
