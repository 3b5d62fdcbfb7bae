// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// createKeyRequest is the payload for POST /api/v1/rampart-keys.
type createKeyRequest struct {
	Name               string     `json:"name"`
	Permissions        []string   `json:"permissions,omitempty"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute,omitempty"`
	RateLimitPerHour   int        `json:"rate_limit_per_hour,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// createKeyResponse carries the plaintext exactly once.
type createKeyResponse struct {
	Key    *APIKey `json:"key"`
	Secret string  `json:"secret"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	for _, perm := range req.Permissions {
		if !ValidPermission(perm) {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown permission: "+perm)
			return
		}
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "invalid_request", "expires_at must be in the future")
		return
	}

	principal := PrincipalFromContext(r.Context())
	key, secret, err := s.keys.Create(r.Context(), principal.UserID, CreateKeyParams{
		Name:               req.Name,
		Permissions:        req.Permissions,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{Key: key, Secret: secret})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	keys, err := s.keys.List(r.Context(), principal.UserID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	if err := s.keys.Revoke(r.Context(), principal.UserID, mux.Vars(r)["id"]); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleKeyUsage(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	keyID := mux.Vars(r)["id"]

	// Ownership check before touching usage rows.
	if _, err := s.keys.GetOwned(r.Context(), principal.UserID, keyID); err != nil {
		writeStorageError(w, err)
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 365 {
			writeError(w, http.StatusBadRequest, "invalid_request", "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	summary, err := s.usage.SummarizeKey(r.Context(), keyID, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
