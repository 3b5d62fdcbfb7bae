// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rampart/platform/common/usage"
)

// analyzeRequest is the payload for POST /api/v1/security/analyze.
type analyzeRequest struct {
	Content     string      `json:"content"`
	ContextType ContextType `json:"context_type"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}
	if req.ContextType == "" {
		req.ContextType = ContextInput
	}
	if !req.ContextType.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "context_type must be one of input, output, system_prompt")
		return
	}

	principal := PrincipalFromContext(r.Context())
	result := s.analyzer.Analyze(r.Context(), principal.UserID, req.Content, req.ContextType)

	promAnalysesTotal.WithLabelValues(string(req.ContextType)).Inc()
	for _, threat := range result.Threats {
		promThreatsDetected.WithLabelValues(string(threat.Type)).Inc()
	}
	if !result.IsSafe {
		promBlockedRequests.Inc()
	}

	s.trackUsage(r, principal, true, 0)
	writeJSON(w, http.StatusOK, result)
}

// analyzeBatchRequest is the payload for POST /api/v1/security/analyze/batch.
type analyzeBatchRequest struct {
	Contents    []string    `json:"contents"`
	ContextType ContextType `json:"context_type"`
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req analyzeBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Contents) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "contents is required")
		return
	}
	if req.ContextType == "" {
		req.ContextType = ContextInput
	}
	if !req.ContextType.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "context_type must be one of input, output, system_prompt")
		return
	}

	principal := PrincipalFromContext(r.Context())
	results, err := s.analyzer.AnalyzeBatch(r.Context(), principal.UserID, req.Contents, req.ContextType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	promAnalysesTotal.WithLabelValues(string(req.ContextType)).Add(float64(len(results)))

	s.trackUsage(r, principal, true, 0)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// scanIndirectRequest is the payload for POST /api/v1/security/scan-indirect.
type scanIndirectRequest struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

func (s *Server) handleScanIndirect(w http.ResponseWriter, r *http.Request) {
	var req scanIndirectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}
	if req.Source == "" {
		req.Source = "unknown"
	}

	result := s.analyzer.ScanIndirect(r.Context(), req.Content, req.Source)
	if result.IsIndirectInjection {
		promThreatsDetected.WithLabelValues(string(ThreatPromptInjection)).Inc()
	}

	s.trackUsage(r, PrincipalFromContext(r.Context()), true, 0)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSecurityStats(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 90 {
			writeError(w, http.StatusBadRequest, "invalid_request", "days must be between 1 and 90")
			return
		}
		days = parsed
	}

	stats, err := s.incidents.GetStats(r.Context(), principal.UserID, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	params := ListParams{Status: query.Get("status")}
	if params.Status != "" && !ValidIncidentStatus(params.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown incident status: "+params.Status)
		return
	}
	if raw := query.Get("limit"); raw != "" {
		params.Limit, _ = strconv.Atoi(raw)
	}
	if raw := query.Get("offset"); raw != "" {
		params.Offset, _ = strconv.Atoi(raw)
	}

	incidents, err := s.incidents.List(r.Context(), principal.UserID, params)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	incident, err := s.incidents.GetByID(r.Context(), principal.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

// incidentStatusRequest is the payload for PATCH .../incidents/{id}/status.
type incidentStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleIncidentStatus(w http.ResponseWriter, r *http.Request) {
	var req incidentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	principal := PrincipalFromContext(r.Context())
	incidentID := mux.Vars(r)["id"]

	err := s.incidents.UpdateStatus(r.Context(), principal.UserID, incidentID, req.Status)
	var fieldErr fieldError
	if errors.As(err, &fieldErr) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}

	incident, err := s.incidents.GetByID(r.Context(), principal.UserID, incidentID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

// trackUsage meters one API-key request; session callers are not
// metered.
func (s *Server) trackUsage(r *http.Request, principal *Principal, success bool, tokens int) {
	s.trackUsageCost(r, principal, success, tokens, 0)
}

func (s *Server) trackUsageCost(r *http.Request, principal *Principal, success bool, tokens, costCents int) {
	if principal == nil || principal.APIKeyID == "" {
		return
	}
	s.usage.Track(usage.Event{
		APIKeyID:  principal.APIKeyID,
		Endpoint:  r.URL.Path,
		Success:   success,
		Tokens:    tokens,
		CostCents: costCents,
	})
}
