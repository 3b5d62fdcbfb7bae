// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"time"
)

// ContextType identifies where a piece of content sits in the LLM
// conversation. It determines which detectors run on it.
type ContextType string

const (
	// ContextInput is user-supplied prompt text.
	ContextInput ContextType = "input"

	// ContextOutput is model-generated text.
	ContextOutput ContextType = "output"

	// ContextSystemPrompt is operator-supplied instruction text.
	ContextSystemPrompt ContextType = "system_prompt"
)

// IsValid reports whether the context type is a known value.
func (c ContextType) IsValid() bool {
	switch c {
	case ContextInput, ContextOutput, ContextSystemPrompt:
		return true
	default:
		return false
	}
}

// ThreatSeverity grades a detected threat.
type ThreatSeverity string

const (
	SeverityLow      ThreatSeverity = "LOW"
	SeverityMedium   ThreatSeverity = "MEDIUM"
	SeverityHigh     ThreatSeverity = "HIGH"
	SeverityCritical ThreatSeverity = "CRITICAL"
)

// SeverityForConfidence maps a confidence score onto the severity ladder.
func SeverityForConfidence(confidence float64) ThreatSeverity {
	switch {
	case confidence >= 0.9:
		return SeverityCritical
	case confidence >= 0.75:
		return SeverityHigh
	case confidence >= 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ThreatType identifies the class of a detected threat.
type ThreatType string

const (
	ThreatPromptInjection  ThreatType = "prompt_injection"
	ThreatJailbreak        ThreatType = "jailbreak"
	ThreatDataExfiltration ThreatType = "data_exfiltration"
	ThreatPIIExposure      ThreatType = "pii_exposure"
	ThreatToxicContent     ThreatType = "toxic_content"
)

// Threat is one entry in an inspection verdict.
type Threat struct {
	Type              ThreatType     `json:"type"`
	Severity          ThreatSeverity `json:"severity"`
	Confidence        float64        `json:"confidence"`
	Description       string         `json:"description"`
	Indicators        []string       `json:"indicators,omitempty"`
	RecommendedAction string         `json:"recommended_action"`
}

// Principal is the authenticated caller attached to a request after the
// bearer gate. Exactly one of the two credential classes produced it.
type Principal struct {
	UserID string
	Email  string

	// APIKeyID is set when the caller authenticated with an API key;
	// empty for session-token callers. Usage accounting keys off it.
	APIKeyID string

	// Permissions is the permission set of the API key, nil for
	// session callers (sessions carry every permission).
	Permissions []string
}

// HasPermission reports whether the principal may perform the named
// operation. Session principals are unrestricted.
func (p *Principal) HasPermission(perm string) bool {
	if p.APIKeyID == "" {
		return true
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// User is an account row.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is the stored representation of an API key. The plaintext is
// never persisted; Preview is the only displayable fragment.
type APIKey struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"-"`
	Name               string     `json:"name"`
	Preview            string     `json:"key_preview"`
	Permissions        []string   `json:"permissions"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerHour   int        `json:"rate_limit_per_hour"`
	Active             bool       `json:"active"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ProviderCredential is a stored third-party provider API key. Only the
// masked form is ever returned through the API.
type ProviderCredential struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Provider  string    `json:"provider"`
	MaskedKey string    `json:"masked_key"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Incident is a persisted record of a high-risk inspection.
type Incident struct {
	ID             string         `json:"id"`
	UserID         string         `json:"-"`
	ThreatType     ThreatType     `json:"threat_type"`
	Severity       ThreatSeverity `json:"severity"`
	Action         string         `json:"action"`
	RiskScore      float64        `json:"risk_score"`
	ContentPreview string         `json:"content_preview"`
	Status         string         `json:"status"`
	DetectedAt     time.Time      `json:"detected_at"`
}

// Incident status values. Transitions outside this set are rejected.
const (
	IncidentOpen          = "open"
	IncidentInvestigating = "investigating"
	IncidentResolved      = "resolved"
	IncidentFalsePositive = "false_positive"
)

// ValidIncidentStatus reports whether s is an allowed incident status.
func ValidIncidentStatus(s string) bool {
	switch s {
	case IncidentOpen, IncidentInvestigating, IncidentResolved, IncidentFalsePositive:
		return true
	default:
		return false
	}
}

// API key permissions understood by the gateway.
const (
	PermSecurityAnalyze = "security:analyze"
	PermSecurityBatch   = "security:batch"
	PermFilterPII       = "filter:pii"
	PermFilterToxicity  = "filter:toxicity"
	PermLLMChat         = "llm:chat"
	PermLLMStream       = "llm:stream"
	PermAnalyticsRead   = "analytics:read"
	PermTestRun         = "test:run"
)

// DefaultKeyPermissions is the permission set granted when a key
// creation request does not name any.
func DefaultKeyPermissions() []string {
	return []string{PermSecurityAnalyze, PermFilterPII, PermFilterToxicity}
}

// ValidPermission reports whether perm is a known API key permission.
func ValidPermission(perm string) bool {
	switch perm {
	case PermSecurityAnalyze, PermSecurityBatch, PermFilterPII, PermFilterToxicity,
		PermLLMChat, PermLLMStream, PermAnalyticsRead, PermTestRun:
		return true
	default:
		return false
	}
}
