// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"net/http"
	"net/mail"
	"time"
)

const minPasswordLength = 12

// credentialsRequest is the payload for register and login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is the session token envelope.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user,omitempty"`
}

func validateCredentials(req *credentialsRequest) error {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errField("a valid email address is required")
	}
	if len(req.Password) < minPasswordLength {
		return errField("password must be at least 12 characters")
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateCredentials(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	token, err := s.sessions.Mint(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.sessions.TTL() / time.Second),
		User:        user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrAccountInactive) {
		writeError(w, http.StatusForbidden, "account_inactive", ErrAccountInactive.Error())
		return
	}
	if err != nil {
		writeUnauthorized(w)
		return
	}

	token, err := s.sessions.Mint(user.ID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.sessions.TTL() / time.Second),
		User:        user,
	})
}

// handleRefresh reissues a session token for an authenticated session
// caller, extending the window without another password round-trip.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	token, err := s.sessions.Mint(principal.UserID, principal.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.sessions.TTL() / time.Second),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	user, err := s.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
