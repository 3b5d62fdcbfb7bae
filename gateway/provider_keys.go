// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Providers accepted for stored credentials.
var supportedProviders = map[string]struct{}{
	"openai":    {},
	"anthropic": {},
	"bedrock":   {},
}

// ValidProvider reports whether the provider tag is supported.
func ValidProvider(provider string) bool {
	_, ok := supportedProviders[provider]
	return ok
}

// ProviderKeyRepository stores third-party provider credentials
// encrypted at rest. The plaintext leaves this type only through
// Decrypt, which exists solely for the LLM proxy path.
type ProviderKeyRepository struct {
	db     *sql.DB
	cipher *CredentialCipher
}

// NewProviderKeyRepository creates a repository over the given database
// and credential cipher.
func NewProviderKeyRepository(db *sql.DB, cipher *CredentialCipher) *ProviderKeyRepository {
	return &ProviderKeyRepository{db: db, cipher: cipher}
}

// Upsert stores or replaces the user's credential for a provider. At
// most one active credential exists per (user, provider).
func (r *ProviderKeyRepository) Upsert(ctx context.Context, userID, provider, plaintext string) (*ProviderCredential, error) {
	if !ValidProvider(provider) {
		return nil, fmt.Errorf("unsupported provider: %q", provider)
	}
	if plaintext == "" {
		return nil, fmt.Errorf("credential must not be empty")
	}

	encrypted, err := r.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}

	last4 := plaintext
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}

	cred := &ProviderCredential{
		UserID:    userID,
		Provider:  provider,
		MaskedKey: MaskCredential(plaintext),
		Status:    "active",
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO provider_keys (id, user_id, provider, encrypted_key, key_last4, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		ON CONFLICT (user_id, provider)
		DO UPDATE SET encrypted_key = EXCLUDED.encrypted_key,
		              key_last4 = EXCLUDED.key_last4,
		              status = 'active',
		              updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, uuid.NewString(), userID, provider, encrypted, last4,
	).Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return cred, nil
}

// List returns the user's stored credentials in masked form.
func (r *ProviderKeyRepository) List(ctx context.Context, userID string) ([]ProviderCredential, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider, key_last4, status, created_at, updated_at
		FROM provider_keys
		WHERE user_id = $1
		ORDER BY provider
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	creds := []ProviderCredential{}
	for rows.Next() {
		var cred ProviderCredential
		var last4 string
		if err := rows.Scan(&cred.ID, &cred.Provider, &last4, &cred.Status,
			&cred.CreatedAt, &cred.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		cred.UserID = userID
		cred.MaskedKey = "****" + last4
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// Decrypt returns the plaintext credential for the LLM proxy. It must
// never appear in logs or API responses.
func (r *ProviderKeyRepository) Decrypt(ctx context.Context, userID, provider string) (string, error) {
	var encrypted string
	err := r.db.QueryRowContext(ctx, `
		SELECT encrypted_key FROM provider_keys
		WHERE user_id = $1 AND provider = $2 AND status = 'active'
	`, userID, provider).Scan(&encrypted)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	return r.cipher.Decrypt(encrypted)
}

// Delete removes the user's credential for a provider.
func (r *ProviderKeyRepository) Delete(ctx context.Context, userID, provider string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM provider_keys WHERE user_id = $1 AND provider = $2
	`, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
