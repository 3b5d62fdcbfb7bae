// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest

	// Template shortcut: {"template": "gdpr"} materializes a bundled
	// rule set instead of a hand-written one.
	var raw struct {
		Template string `json:"template"`
		CreatePolicyRequest
	}
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if raw.Template != "" {
		template, ok := GetPolicyTemplate(raw.Template)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown policy template: "+raw.Template)
			return
		}
		req = *template.MaterializeRequest()
	} else {
		req = raw.CreatePolicyRequest
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	principal := PrincipalFromContext(r.Context())
	policy, err := s.policies.Create(r.Context(), principal.UserID, &req)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	policies, err := s.policies.List(r.Context(), principal.UserID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
	})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	policy, err := s.policies.GetByID(r.Context(), principal.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req UpdatePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	for i, rule := range req.Rules {
		if !ValidRuleCondition(rule.Condition) || !ValidRuleAction(rule.Action) {
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("rule %d has an unknown condition or action", i))
			return
		}
	}

	principal := PrincipalFromContext(r.Context())
	policy, err := s.policies.Update(r.Context(), principal.UserID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	if err := s.policies.Delete(r.Context(), principal.UserID, mux.Vars(r)["id"]); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleCreatePolicyFromTemplate materializes a bundled template named
// by the path tag, equivalent to POST /policies with {"template": tag}.
func (s *Server) handleCreatePolicyFromTemplate(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["template"]
	template, ok := GetPolicyTemplate(tag)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown policy template: "+tag)
		return
	}

	principal := PrincipalFromContext(r.Context())
	policy, err := s.policies.Create(r.Context(), principal.UserID, template.MaterializeRequest())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handlePolicyTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": ListPolicyTemplates(),
	})
}

// evaluateRequest is the payload for POST /api/v1/policies/evaluate.
type evaluateRequest struct {
	Content  string   `json:"content"`
	Policies []string `json:"policies,omitempty"`
}

func (s *Server) handleEvaluatePolicies(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	principal := PrincipalFromContext(r.Context())
	evaluation, err := s.engine.Evaluate(r.Context(), principal.UserID, req.Content, req.Policies)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if !evaluation.Allowed {
		promBlockedRequests.Inc()
	}

	s.trackUsage(r, principal, true, 0)
	writeJSON(w, http.StatusOK, evaluation)
}

const policyDefaultsKey = "policy_defaults"

func (s *Server) handleGetPolicyDefaults(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	value, err := s.policies.GetDefault(r.Context(), principal.UserID, policyDefaultsKey)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"defaults": map[string]interface{}{}})
		return
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"defaults": value})
}

func (s *Server) handleSetPolicyDefaults(w http.ResponseWriter, r *http.Request) {
	var value json.RawMessage
	if err := decodeJSON(r, &value); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	principal := PrincipalFromContext(r.Context())
	if err := s.policies.SetDefault(r.Context(), principal.UserID, policyDefaultsKey, value); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"defaults": value})
}
