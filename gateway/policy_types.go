// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"fmt"
	"time"
)

// RuleCondition is the closed vocabulary of policy rule conditions.
type RuleCondition string

const (
	CondContainsPII           RuleCondition = "contains_pii"
	CondContainsPHI           RuleCondition = "contains_phi"
	CondProfanity             RuleCondition = "profanity"
	CondDataRetentionExceeded RuleCondition = "data_retention_exceeded"
	CondUnauthorizedAccess    RuleCondition = "unauthorized_access"
	CondAuditLogRequired      RuleCondition = "audit_log_required"
	CondEncryptionRequired    RuleCondition = "encryption_required"
)

// ValidRuleCondition reports whether c is in the closed vocabulary.
func ValidRuleCondition(c RuleCondition) bool {
	switch c {
	case CondContainsPII, CondContainsPHI, CondProfanity, CondDataRetentionExceeded,
		CondUnauthorizedAccess, CondAuditLogRequired, CondEncryptionRequired:
		return true
	default:
		return false
	}
}

// RuleAction is what a matched rule does to the request.
type RuleAction string

const (
	RuleAllow  RuleAction = "ALLOW"
	RuleBlock  RuleAction = "BLOCK"
	RuleRedact RuleAction = "REDACT"
	RuleFlag   RuleAction = "FLAG"
	RuleAlert  RuleAction = "ALERT"
)

// ValidRuleAction reports whether a is a known action.
func ValidRuleAction(a RuleAction) bool {
	switch a {
	case RuleAllow, RuleBlock, RuleRedact, RuleFlag, RuleAlert:
		return true
	default:
		return false
	}
}

// PolicyRule is one rule inside a policy. Rules have no identity of
// their own; they live in the policy's JSON rule list.
type PolicyRule struct {
	Condition RuleCondition          `json:"condition"`
	Action    RuleAction             `json:"action"`
	Priority  int                    `json:"priority"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Policy is a user-scoped rule set.
type Policy struct {
	ID          string       `json:"id"`
	UserID      string       `json:"-"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Type        string       `json:"type"`
	Rules       []PolicyRule `json:"rules"`
	Enabled     bool         `json:"enabled"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CreatePolicyRequest is the payload for POST /api/v1/policies.
type CreatePolicyRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Rules       []PolicyRule `json:"rules"`
	Enabled     *bool        `json:"enabled,omitempty"`
}

// Validate rejects structurally invalid policy payloads.
func (r *CreatePolicyRequest) Validate() error {
	if r.Name == "" {
		return errField("name is required")
	}
	if len(r.Rules) == 0 {
		return errField("at least one rule is required")
	}
	for i, rule := range r.Rules {
		if !ValidRuleCondition(rule.Condition) {
			return errField(fmt.Sprintf("rule %d: unknown condition %q", i, rule.Condition))
		}
		if !ValidRuleAction(rule.Action) {
			return errField(fmt.Sprintf("rule %d: unknown action %q", i, rule.Action))
		}
	}
	return nil
}

// UpdatePolicyRequest is the payload for PUT /api/v1/policies/{id}.
// Nil fields are left unchanged.
type UpdatePolicyRequest struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Rules       []PolicyRule `json:"rules,omitempty"`
	Enabled     *bool        `json:"enabled,omitempty"`
}

// PolicyViolation is one matched rule during evaluation.
type PolicyViolation struct {
	PolicyID   string        `json:"policy_id"`
	PolicyName string        `json:"policy_name"`
	Condition  RuleCondition `json:"condition"`
	Action     RuleAction    `json:"action"`
	Priority   int           `json:"priority"`
}

// PolicyEvaluation is the outcome of evaluating content against the
// principal's policies.
type PolicyEvaluation struct {
	Allowed         bool              `json:"allowed"`
	Violations      []PolicyViolation `json:"violations"`
	ActionsTaken    []RuleAction      `json:"actions_taken"`
	ModifiedContent *string           `json:"modified_content,omitempty"`
}

// fieldError is a request validation failure surfaced as HTTP 400.
type fieldError string

func (e fieldError) Error() string { return string(e) }

func errField(msg string) error { return fieldError(msg) }
