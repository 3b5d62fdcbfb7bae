// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"net/http"
	"time"

	"rampart/platform/gateway/pii"
)

// filterRequest is the payload for the content filter endpoints.
type filterRequest struct {
	Content string `json:"content"`

	// CustomPatterns maps a label to a regex; matches are reported as
	// custom entities alongside the built-in catalogue.
	CustomPatterns map[string]string `json:"custom_patterns,omitempty"`

	// Policies restricts evaluation to the named policy ids; empty
	// means every enabled policy.
	Policies []string `json:"policies,omitempty"`
}

// filterResponse is the combined PII, toxicity and policy verdict.
type filterResponse struct {
	Filtered   bool               `json:"filtered"`
	Content    string             `json:"content"`
	Entities   []pii.Entity       `json:"pii_entities"`
	Toxicity   *pii.ToxicityScore `json:"toxicity"`
	Evaluation *PolicyEvaluation  `json:"policy_evaluation,omitempty"`
	LatencyMs  float64            `json:"latency_ms"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	principal := PrincipalFromContext(r.Context())

	entities, err := s.pii.Detect(r.Context(), req.Content, req.CustomPatterns)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	toxicity, err := s.toxicity.Score(r.Context(), req.Content)
	if err != nil {
		s.trackUsage(r, principal, false, 0)
		writeError(w, http.StatusInternalServerError, "internal_error", "toxicity scoring failed")
		return
	}

	evaluation, err := s.engine.Evaluate(r.Context(), principal.UserID, req.Content, req.Policies)
	if err != nil {
		s.trackUsage(r, principal, false, 0)
		writeStorageError(w, err)
		return
	}

	content := req.Content
	filtered := false
	if evaluation.ModifiedContent != nil {
		content = *evaluation.ModifiedContent
		filtered = true
	}
	if len(entities) > 0 {
		content = pii.Redact(content, entities)
		filtered = true
	}
	if !evaluation.Allowed {
		promBlockedRequests.Inc()
	}
	for range entities {
		promThreatsDetected.WithLabelValues(string(ThreatPIIExposure)).Inc()
	}
	if toxicity.IsToxic {
		promThreatsDetected.WithLabelValues(string(ThreatToxicContent)).Inc()
	}

	s.trackUsage(r, principal, true, 0)
	writeJSON(w, http.StatusOK, filterResponse{
		Filtered:   filtered,
		Content:    content,
		Entities:   entities,
		Toxicity:   toxicity,
		Evaluation: evaluation,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

// redactResponse is the payload for POST /api/v1/filter/redact.
type redactResponse struct {
	Content   string       `json:"content"`
	Entities  []pii.Entity `json:"pii_entities"`
	Redacted  int          `json:"redacted_count"`
	LatencyMs float64      `json:"latency_ms"`
}

func (s *Server) handleFilterRedact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	principal := PrincipalFromContext(r.Context())

	entities, err := s.pii.Detect(r.Context(), req.Content, req.CustomPatterns)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.trackUsage(r, principal, true, 0)
	writeJSON(w, http.StatusOK, redactResponse{
		Content:   pii.Redact(req.Content, entities),
		Entities:  entities,
		Redacted:  len(entities),
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	})
}

func (s *Server) handleFilterToxicity(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	principal := PrincipalFromContext(r.Context())

	score, err := s.toxicity.Score(r.Context(), req.Content)
	if err != nil {
		s.trackUsage(r, principal, false, 0)
		writeError(w, http.StatusInternalServerError, "internal_error", "toxicity scoring failed")
		return
	}
	if score.IsToxic {
		promThreatsDetected.WithLabelValues(string(ThreatToxicContent)).Inc()
	}

	s.trackUsage(r, principal, true, 0)
	writeJSON(w, http.StatusOK, score)
}

// handleFilterStats reports the PII catalogue and active policy count,
// the filter-side counterpart of /security/stats.
func (s *Server) handleFilterStats(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	policies, err := s.policies.ListEnabled(r.Context(), principal.UserID, nil)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pii_types":        pii.AllTypes(),
		"active_policies":  len(policies),
		"toxicity_enabled": true,
	})
}
