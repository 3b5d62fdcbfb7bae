// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Sentinel errors shared across the gateway repositories and handlers.
// The HTTP layer maps these onto the error envelope; everything else is
// treated as an internal error.
var (
	// ErrNotFound is returned when an entity does not exist for the
	// authenticated principal. Rows owned by another user are reported
	// as not found, never as forbidden, so ids cannot be probed.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned for any credential failure. The
	// message is uniform on purpose: invalid format, expired, revoked
	// and unknown keys must be indistinguishable to callers.
	ErrUnauthorized = errors.New("invalid or expired credentials")

	// ErrAccountInactive is returned when the credential is valid but
	// the owning account has been deactivated.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrKeyLimitReached is returned when a user already has the
	// maximum number of active API keys.
	ErrKeyLimitReached = errors.New("maximum number of active API keys reached")

	// ErrEmailTaken is returned when registering an email that already
	// has an account.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrQuotaExceeded is returned by the rate limiter.
	ErrQuotaExceeded = errors.New("rate limit exceeded")
)

// ErrorResponse is the JSON error envelope returned by every endpoint.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError emits the error envelope with the given status code.
func writeError(w http.ResponseWriter, status int, kind, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: kind, Detail: detail}) //nolint:errcheck
}

// writeJSON emits a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// writeUnauthorized emits the uniform 401 envelope with the bearer
// challenge header required by RFC 6750.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized.Error())
}

// writeRateLimited emits the 429 envelope with Retry-After.
func writeRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
}

// writeStorageError maps repository errors onto the envelope. Ownership
// misses become 404; everything unexpected becomes a generic 500.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, ErrKeyLimitReached):
		writeError(w, http.StatusBadRequest, "key_limit_reached", err.Error())
	case errors.Is(err, ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "email_taken", err.Error())
	case errors.Is(err, ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account_inactive", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
