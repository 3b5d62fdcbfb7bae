// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"sort"
	"strings"
)

// redactedSentinel replaces content when a REDACT rule fires.
const redactedSentinel = "[CONTENT_REDACTED_BY_POLICY]"

// conditionKeywords drive rule matching by substring search. This is a
// deliberate simplification: conditions fire on keyword presence, not
// on a semantic classification of the content. Known limitation until
// a proper rule engine replaces it.
var conditionKeywords = map[RuleCondition][]string{
	CondContainsPII: {
		"ssn", "social security", "credit card", "passport",
		"driver's license", "date of birth", "email", "phone",
	},
	CondContainsPHI: {
		"diagnosis", "prescription", "medical record", "patient",
		"treatment", "health insurance", "hipaa",
	},
	CondProfanity: {
		"damn", "hell", "crap",
	},
	CondDataRetentionExceeded: {
		"retention", "expired data", "old records",
	},
	CondUnauthorizedAccess: {
		"unauthorized", "access denied", "permission denied", "forbidden",
	},
	CondAuditLogRequired: {
		"audit", "compliance check", "regulatory",
	},
	CondEncryptionRequired: {
		"unencrypted", "plaintext password", "cleartext",
	},
}

// PolicyEngine evaluates content against a principal's stored policies.
type PolicyEngine struct {
	policies *PolicyRepository
}

// NewPolicyEngine creates an engine over the policy repository.
func NewPolicyEngine(policies *PolicyRepository) *PolicyEngine {
	return &PolicyEngine{policies: policies}
}

// conditionMatches reports whether the condition's keyword set appears
// in the content.
func conditionMatches(condition RuleCondition, content string) bool {
	keywords, ok := conditionKeywords[condition]
	if !ok {
		return false
	}
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Evaluate runs the principal's enabled policies against the content.
// Rules are evaluated in priority order (descending) within each
// policy; BLOCK clears the content, REDACT replaces it with the
// sentinel. The request is allowed unless some violation's action is
// BLOCK.
func (e *PolicyEngine) Evaluate(ctx context.Context, userID, content string, policyIDs []string) (*PolicyEvaluation, error) {
	policies, err := e.policies.ListEnabled(ctx, userID, policyIDs)
	if err != nil {
		return nil, err
	}

	eval := &PolicyEvaluation{
		Allowed:      true,
		Violations:   []PolicyViolation{},
		ActionsTaken: []RuleAction{},
	}

	modified := content
	contentModified := false

	for _, policy := range policies {
		rules := append([]PolicyRule(nil), policy.Rules...)
		sort.SliceStable(rules, func(i, j int) bool {
			return rules[i].Priority > rules[j].Priority
		})

		for _, rule := range rules {
			if !conditionMatches(rule.Condition, content) {
				continue
			}

			eval.Violations = append(eval.Violations, PolicyViolation{
				PolicyID:   policy.ID,
				PolicyName: policy.Name,
				Condition:  rule.Condition,
				Action:     rule.Action,
				Priority:   rule.Priority,
			})
			eval.ActionsTaken = append(eval.ActionsTaken, rule.Action)

			switch rule.Action {
			case RuleBlock:
				eval.Allowed = false
				modified = ""
				contentModified = true
			case RuleRedact:
				if modified != "" {
					modified = redactedSentinel
					contentModified = true
				}
			}
		}
	}

	if contentModified {
		eval.ModifiedContent = &modified
	}
	return eval, nil
}
