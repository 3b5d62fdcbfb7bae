// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PolicyRepository persists user-scoped policies. Every query filters
// by user id; a policy owned by someone else behaves exactly like a
// missing policy.
type PolicyRepository struct {
	db *sql.DB
}

// NewPolicyRepository creates a repository over the given database.
func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create stores a new policy at version 1.
func (r *PolicyRepository) Create(ctx context.Context, userID string, req *CreatePolicyRequest) (*Policy, error) {
	rulesJSON, err := json.Marshal(req.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	policyType := req.Type
	if policyType == "" {
		policyType = "content"
	}

	policy := &Policy{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Type:        policyType,
		Rules:       req.Rules,
		Enabled:     enabled,
		Version:     1,
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO policies (id, user_id, name, description, policy_type, rules, enabled, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		RETURNING created_at, updated_at
	`, policy.ID, userID, policy.Name, policy.Description, policy.Type,
		rulesJSON, enabled,
	).Scan(&policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	return policy, nil
}

// GetByID fetches one policy, enforcing ownership.
func (r *PolicyRepository) GetByID(ctx context.Context, userID, policyID string) (*Policy, error) {
	policy := &Policy{UserID: userID}
	var rulesJSON []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, policy_type, rules, enabled, version, created_at, updated_at
		FROM policies WHERE id = $1 AND user_id = $2
	`, policyID, userID).Scan(&policy.ID, &policy.Name, &policy.Description,
		&policy.Type, &rulesJSON, &policy.Enabled, &policy.Version,
		&policy.CreatedAt, &policy.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	if err := json.Unmarshal(rulesJSON, &policy.Rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return policy, nil
}

// List returns every policy the user owns, newest first.
func (r *PolicyRepository) List(ctx context.Context, userID string) ([]Policy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, policy_type, rules, enabled, version, created_at, updated_at
		FROM policies WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := []Policy{}
	for rows.Next() {
		policy := Policy{UserID: userID}
		var rulesJSON []byte
		if err := rows.Scan(&policy.ID, &policy.Name, &policy.Description,
			&policy.Type, &rulesJSON, &policy.Enabled, &policy.Version,
			&policy.CreatedAt, &policy.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy row: %w", err)
		}
		if err := json.Unmarshal(rulesJSON, &policy.Rules); err != nil {
			return nil, fmt.Errorf("failed to decode rules: %w", err)
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

// ListEnabled returns the user's enabled policies, optionally filtered
// to an id set, for evaluation.
func (r *PolicyRepository) ListEnabled(ctx context.Context, userID string, policyIDs []string) ([]Policy, error) {
	all, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var want map[string]struct{}
	if len(policyIDs) > 0 {
		want = make(map[string]struct{}, len(policyIDs))
		for _, id := range policyIDs {
			want[id] = struct{}{}
		}
	}

	enabled := []Policy{}
	for _, p := range all {
		if !p.Enabled {
			continue
		}
		if want != nil {
			if _, ok := want[p.ID]; !ok {
				continue
			}
		}
		enabled = append(enabled, p)
	}
	return enabled, nil
}

// Update applies a partial update and bumps the version. History is
// not retained.
func (r *PolicyRepository) Update(ctx context.Context, userID, policyID string, req *UpdatePolicyRequest) (*Policy, error) {
	policy, err := r.GetByID(ctx, userID, policyID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		policy.Name = *req.Name
	}
	if req.Description != nil {
		policy.Description = *req.Description
	}
	if req.Rules != nil {
		for i, rule := range req.Rules {
			if !ValidRuleCondition(rule.Condition) {
				return nil, errField(fmt.Sprintf("rule %d: unknown condition %q", i, rule.Condition))
			}
			if !ValidRuleAction(rule.Action) {
				return nil, errField(fmt.Sprintf("rule %d: unknown action %q", i, rule.Action))
			}
		}
		policy.Rules = req.Rules
	}
	if req.Enabled != nil {
		policy.Enabled = *req.Enabled
	}

	rulesJSON, err := json.Marshal(policy.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		UPDATE policies
		SET name = $1, description = $2, rules = $3, enabled = $4,
		    version = version + 1, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING version, updated_at
	`, policy.Name, policy.Description, rulesJSON, policy.Enabled,
		policyID, userID,
	).Scan(&policy.Version, &policy.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	return policy, nil
}

// Delete removes a policy, enforcing ownership.
func (r *PolicyRepository) Delete(ctx context.Context, userID, policyID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM policies WHERE id = $1 AND user_id = $2
	`, policyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDefault reads one policy-defaults value for the user.
func (r *PolicyRepository) GetDefault(ctx context.Context, userID, key string) (json.RawMessage, error) {
	var value json.RawMessage
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM policy_defaults WHERE user_id = $1 AND key = $2
	`, userID, key).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load default: %w", err)
	}
	return value, nil
}

// SetDefault upserts one policy-defaults value for the user.
func (r *PolicyRepository) SetDefault(ctx context.Context, userID, key string, value json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policy_defaults (user_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, userID, key, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to store default: %w", err)
	}
	return nil
}
