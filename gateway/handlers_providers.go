// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
)

// providerKeyRequest is the payload for POST /api/v1/providers/keys.
type providerKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

func (s *Server) handleUpsertProviderKey(w http.ResponseWriter, r *http.Request) {
	var req providerKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !ValidProvider(req.Provider) {
		writeError(w, http.StatusBadRequest, "invalid_request", "provider must be one of openai, anthropic, bedrock")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "api_key is required")
		return
	}

	principal := PrincipalFromContext(r.Context())
	credential, err := s.providerKeys.Upsert(r.Context(), principal.UserID, req.Provider, req.APIKey)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, credential)
}

func (s *Server) handleListProviderKeys(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	credentials, err := s.providerKeys.List(r.Context(), principal.UserID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": credentials,
		"count":     len(credentials),
	})
}

func (s *Server) handleDeleteProviderKey(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if !ValidProvider(provider) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown provider: "+provider)
		return
	}

	principal := PrincipalFromContext(r.Context())
	if err := s.providerKeys.Delete(r.Context(), principal.UserID, provider); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
