// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"sort"
)

// PolicyTemplate is a compliance-oriented seed policy. Materializing a
// template creates a regular policy owned by the requesting user.
type PolicyTemplate struct {
	Tag         string       `json:"tag"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Rules       []PolicyRule `json:"rules"`
}

// policyTemplates is the fixed template registry.
var policyTemplates = map[string]PolicyTemplate{
	"gdpr": {
		Tag:         "gdpr",
		Name:        "GDPR Data Protection",
		Description: "Blocks personal data exposure and enforces audit logging per GDPR",
		Type:        "compliance",
		Rules: []PolicyRule{
			{Condition: CondContainsPII, Action: RuleRedact, Priority: 100},
			{Condition: CondDataRetentionExceeded, Action: RuleBlock, Priority: 90},
			{Condition: CondAuditLogRequired, Action: RuleAlert, Priority: 50},
		},
	},
	"hipaa": {
		Tag:         "hipaa",
		Name:        "HIPAA Health Data Protection",
		Description: "Blocks protected health information and requires encryption",
		Type:        "compliance",
		Rules: []PolicyRule{
			{Condition: CondContainsPHI, Action: RuleBlock, Priority: 100},
			{Condition: CondContainsPII, Action: RuleRedact, Priority: 90},
			{Condition: CondEncryptionRequired, Action: RuleAlert, Priority: 60},
		},
	},
	"soc2": {
		Tag:         "soc2",
		Name:        "SOC 2 Security Controls",
		Description: "Flags unauthorized access and audit gaps for SOC 2 reporting",
		Type:        "compliance",
		Rules: []PolicyRule{
			{Condition: CondUnauthorizedAccess, Action: RuleBlock, Priority: 100},
			{Condition: CondAuditLogRequired, Action: RuleFlag, Priority: 70},
			{Condition: CondEncryptionRequired, Action: RuleFlag, Priority: 60},
		},
	},
	"pci-dss": {
		Tag:         "pci-dss",
		Name:        "PCI-DSS Cardholder Data",
		Description: "Redacts cardholder data and blocks unencrypted transport",
		Type:        "compliance",
		Rules: []PolicyRule{
			{Condition: CondContainsPII, Action: RuleRedact, Priority: 100},
			{Condition: CondEncryptionRequired, Action: RuleBlock, Priority: 90},
			{Condition: CondAuditLogRequired, Action: RuleAlert, Priority: 50},
		},
	},
	"ccpa": {
		Tag:         "ccpa",
		Name:        "CCPA Consumer Privacy",
		Description: "Flags personal information and retention violations per CCPA",
		Type:        "compliance",
		Rules: []PolicyRule{
			{Condition: CondContainsPII, Action: RuleFlag, Priority: 100},
			{Condition: CondDataRetentionExceeded, Action: RuleBlock, Priority: 80},
		},
	},
}

// GetPolicyTemplate looks up a template by tag.
func GetPolicyTemplate(tag string) (PolicyTemplate, bool) {
	tpl, ok := policyTemplates[tag]
	return tpl, ok
}

// ListPolicyTemplates returns every template, sorted by tag.
func ListPolicyTemplates() []PolicyTemplate {
	out := make([]PolicyTemplate, 0, len(policyTemplates))
	for _, tpl := range policyTemplates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// MaterializeRequest converts a template into a policy creation request.
func (t PolicyTemplate) MaterializeRequest() *CreatePolicyRequest {
	rules := append([]PolicyRule(nil), t.Rules...)
	return &CreatePolicyRequest{
		Name:        t.Name,
		Description: t.Description,
		Type:        t.Type,
		Rules:       rules,
	}
}
