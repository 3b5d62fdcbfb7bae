// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"net/http"
	"strings"
)

// principalContextKey is the request context key for the authenticated
// principal.
type principalContextKey struct{}

// PrincipalFromContext returns the authenticated principal, or nil for
// unauthenticated (public path) requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// publicPaths are reachable without a bearer credential.
var publicPaths = map[string]struct{}{
	"/":                           {},
	"/health":                     {},
	"/health/ready":               {},
	"/health/live":                {},
	"/metrics":                    {},
	"/api/v1/auth/register":       {},
	"/api/v1/auth/login":          {},
	"/api/v1/auth/oauth/start":    {},
	"/api/v1/auth/oauth/callback": {},
}

// isPublicPath reports whether the path bypasses the bearer gate.
func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// BearerAuth is the unified bearer gate. A token starting with "rmp_"
// is verified as an API key; anything else is verified as a session
// token. Structural pre-checks fail garbage fast, before the bcrypt
// path.
type BearerAuth struct {
	sessions *SessionManager
	keys     *APIKeyRepository
	users    *UserRepository
}

// NewBearerAuth creates the bearer gate.
func NewBearerAuth(sessions *SessionManager, keys *APIKeyRepository, users *UserRepository) *BearerAuth {
	return &BearerAuth{sessions: sessions, keys: keys, users: users}
}

// extractBearer pulls the token out of the Authorization header. The
// scheme comparison is case-insensitive per RFC 9110.
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// plausibleToken rejects obviously malformed tokens before any
// expensive verification: too short, or neither a JWT (dotted) nor a
// Rampart key.
func plausibleToken(token string) bool {
	if len(token) < 10 {
		return false
	}
	return strings.HasPrefix(token, "rmp_") || strings.Contains(token, ".")
}

// Authenticate resolves a bearer token into a principal.
func (a *BearerAuth) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if !plausibleToken(token) {
		return nil, ErrUnauthorized
	}

	if strings.HasPrefix(token, "rmp_") {
		return a.keys.Verify(ctx, token)
	}

	claims, err := a.sessions.Verify(token)
	if err != nil {
		return nil, err
	}

	// Session tokens outlive account deactivation; re-check the account.
	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}

	return &Principal{UserID: user.ID, Email: user.Email}, nil
}

// Middleware enforces bearer authentication on every non-public path.
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}

		principal, err := a.Authenticate(r.Context(), token)
		if err == ErrAccountInactive {
			writeError(w, http.StatusForbidden, "account_inactive", ErrAccountInactive.Error())
			return
		}
		if err != nil {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession wraps a handler that must not be reachable with an API
// key (key management, policy management). API key callers get 401.
func RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r.Context())
		if principal == nil || principal.APIKeyID != "" {
			writeUnauthorized(w)
			return
		}
		next(w, r)
	}
}

// RequirePermission wraps a handler with an API key permission check.
// Session callers always pass.
func RequirePermission(perm string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := PrincipalFromContext(r.Context())
		if principal == nil {
			writeUnauthorized(w)
			return
		}
		if !principal.HasPermission(perm) {
			writeError(w, http.StatusForbidden, "forbidden", "API key lacks permission: "+perm)
			return
		}
		next(w, r)
	}
}
