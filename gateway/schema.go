// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements is the bootstrap DDL for the gateway's relational
// store. Statements are idempotent so repeated startups are safe.
// Postgres dialect; all timestamps are UTC.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS rampart_api_keys (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		key_prefix TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		key_preview TEXT NOT NULL,
		permissions JSONB NOT NULL DEFAULT '[]',
		rate_limit_per_minute INTEGER NOT NULL DEFAULT 60,
		rate_limit_per_hour INTEGER NOT NULL DEFAULT 1000,
		active BOOLEAN NOT NULL DEFAULT true,
		expires_at TIMESTAMPTZ,
		last_used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (key_prefix, key_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rampart_api_keys_prefix
		ON rampart_api_keys (key_prefix) WHERE active = true`,

	`CREATE TABLE IF NOT EXISTS rampart_api_key_usage (
		id BIGSERIAL PRIMARY KEY,
		api_key_id UUID NOT NULL REFERENCES rampart_api_keys(id),
		endpoint TEXT NOT NULL,
		usage_date DATE NOT NULL,
		usage_hour SMALLINT NOT NULL CHECK (usage_hour BETWEEN 0 AND 23),
		request_count BIGINT NOT NULL DEFAULT 0,
		success_count BIGINT NOT NULL DEFAULT 0,
		error_count BIGINT NOT NULL DEFAULT 0,
		total_tokens BIGINT NOT NULL DEFAULT 0,
		total_cost_cents BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (api_key_id, endpoint, usage_date, usage_hour)
	)`,

	`CREATE TABLE IF NOT EXISTS provider_keys (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		provider TEXT NOT NULL,
		encrypted_key TEXT NOT NULL,
		key_last4 TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, provider)
	)`,

	`CREATE TABLE IF NOT EXISTS policies (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		policy_type TEXT NOT NULL,
		rules JSONB NOT NULL DEFAULT '[]',
		enabled BOOLEAN NOT NULL DEFAULT true,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_user
		ON policies (user_id) WHERE enabled = true`,

	`CREATE TABLE IF NOT EXISTS policy_defaults (
		user_id UUID NOT NULL REFERENCES users(id),
		key TEXT NOT NULL,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, key)
	)`,

	`CREATE TABLE IF NOT EXISTS security_incidents (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		threat_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		action TEXT NOT NULL,
		risk_score DOUBLE PRECISION NOT NULL,
		content_preview TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_security_incidents_user
		ON security_incidents (user_id, detected_at DESC)`,
}

// EnsureSchema creates the gateway tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}
