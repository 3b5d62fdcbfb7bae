// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"net/http"
	"time"

	"rampart/platform/common/usage"
	"rampart/platform/gateway/llm"
)

// chatRequest is the payload for POST /api/v1/llm/chat.
type chatRequest struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// chatResponse wraps the provider completion with the gateway's own
// inspection verdict.
type chatResponse struct {
	Content    string  `json:"content"`
	Model      string  `json:"model"`
	StopReason string  `json:"stop_reason,omitempty"`
	Tokens     int     `json:"tokens_used"`
	CostCents  int     `json:"cost_cents"`
	LatencyMs  float64 `json:"latency_ms"`

	// OutputRisk carries the exfiltration scan of the model output;
	// the prompt is inspected before forwarding.
	OutputRisk *InspectionResult `json:"output_inspection,omitempty"`
}

// handleLLMChat proxies a completion through the caller's stored
// provider credential. The prompt is inspected first: a blocking
// verdict answers 403 and persists an incident without touching the
// upstream provider.
func (s *Server) handleLLMChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "prompt is required")
		return
	}
	if !ValidProvider(req.Provider) {
		writeError(w, http.StatusBadRequest, "invalid_request", "provider must be one of openai, anthropic, bedrock")
		return
	}

	principal := PrincipalFromContext(r.Context())

	inspection := s.analyzer.Analyze(r.Context(), principal.UserID, req.Prompt, ContextInput)
	promAnalysesTotal.WithLabelValues(string(ContextInput)).Inc()
	if !inspection.IsSafe {
		promBlockedRequests.Inc()
		s.trackUsage(r, principal, false, 0)
		s.log.Warn(principal.APIKeyID, "", "prompt blocked before provider call", map[string]interface{}{
			"provider":    req.Provider,
			"risk_score":  inspection.RiskScore,
			"incident_id": inspection.IncidentID,
		})
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":       "prompt_blocked",
			"detail":      "prompt failed security inspection",
			"inspection":  inspection,
			"incident_id": inspection.IncidentID,
		})
		return
	}

	credential, err := s.providerKeys.Decrypt(r.Context(), principal.UserID, req.Provider)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusBadRequest, "missing_provider_key", "no stored credential for provider "+req.Provider)
		return
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}

	provider, err := llm.NewProvider(r.Context(), req.Provider, credential)
	if err != nil {
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
		return
	}

	start := time.Now()
	completion, err := provider.Complete(r.Context(), llm.CompletionRequest{
		Model:        req.Model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		s.trackUsage(r, principal, false, 0)
		s.log.Error(principal.APIKeyID, "", "provider completion failed", map[string]interface{}{
			"provider": req.Provider,
			"error":    err.Error(),
		})
		writeUpstreamError(w, err)
		return
	}

	outputRisk := s.analyzer.Analyze(r.Context(), principal.UserID, completion.Content, ContextOutput)
	promAnalysesTotal.WithLabelValues(string(ContextOutput)).Inc()

	content := completion.Content
	if !outputRisk.IsSafe {
		promBlockedRequests.Inc()
		content = s.exfil.Redact(content)
	}

	cost := usage.CalculateCost(req.Provider, completion.Model, completion.InputTokens, completion.OutputTokens)
	s.trackUsageCost(r, principal, true, completion.TotalTokens(), cost)

	writeJSON(w, http.StatusOK, chatResponse{
		Content:    content,
		Model:      completion.Model,
		StopReason: completion.StopReason,
		Tokens:     completion.TotalTokens(),
		CostCents:  cost,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000.0,
		OutputRisk: outputRisk,
	})
}

// writeUpstreamError maps provider API failures onto the envelope
// without leaking upstream credentials or internals.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsAuthError():
			writeError(w, http.StatusBadGateway, "provider_auth_failed", "stored provider credential was rejected")
		case apiErr.IsRateLimitError():
			writeError(w, http.StatusBadGateway, "provider_rate_limited", "provider rate limit exceeded")
		default:
			writeError(w, http.StatusBadGateway, "provider_error", "provider request failed")
		}
		return
	}
	writeError(w, http.StatusBadGateway, "provider_error", "provider request failed")
}
