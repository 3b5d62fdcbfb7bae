// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestIsPublicPath(t *testing.T) {
	public := []string{"/", "/health", "/health/ready", "/health/live", "/metrics",
		"/api/v1/auth/register", "/api/v1/auth/login"}
	for _, p := range public {
		if !isPublicPath(p) {
			t.Errorf("isPublicPath(%q) = false, want true", p)
		}
	}

	private := []string{"/api/v1/auth/me", "/api/v1/security/analyze", "/api/v1/rampart-keys"}
	for _, p := range private {
		if isPublicPath(p) {
			t.Errorf("isPublicPath(%q) = true, want false", p)
		}
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"mixed case scheme", "BEARER abc.def.ghi", "abc.def.ghi"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
		{"trailing space trimmed", "Bearer token-value ", "token-value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := extractBearer(r); got != tt.want {
				t.Errorf("extractBearer = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlausibleToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"rmp_live_ABCDEFGHIJKLMNOP", true},
		{"header.payload.signature", true},
		{"short", false},
		{"rmp_x", false},
		{"nodotsbutlongenoughtoken", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := plausibleToken(tt.token); got != tt.want {
			t.Errorf("plausibleToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestMiddlewareSessionFlow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sessions := NewSessionManager("test-signing-secret", 15*time.Minute)
	token, err := sessions.Mint("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	mock.ExpectQuery("SELECT id, email, active").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "active", "created_at"}).
			AddRow("user-1", "alice@example.com", true, time.Now()))

	auth := NewBearerAuth(sessions, NewAPIKeyRepository(db), NewUserRepository(db))

	var seen *Principal
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.UserID != "user-1" || seen.APIKeyID != "" {
		t.Errorf("principal = %+v", seen)
	}
}

func TestMiddlewareDeactivatedSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sessions := NewSessionManager("test-signing-secret", 15*time.Minute)
	token, _ := sessions.Mint("user-1", "alice@example.com")

	mock.ExpectQuery("SELECT id, email, active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "active", "created_at"}).
			AddRow("user-1", "alice@example.com", false, time.Now()))

	auth := NewBearerAuth(sessions, NewAPIKeyRepository(db), NewUserRepository(db))
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for deactivated account", rec.Code)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sessions := NewSessionManager("test-signing-secret", 15*time.Minute)
	auth := NewBearerAuth(sessions, NewAPIKeyRepository(db), NewUserRepository(db))
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no credential", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/auth/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("public path passes without credential", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withPrincipal := func(p *Principal) *http.Request {
		r := httptest.NewRequest("GET", "/api/v1/rampart-keys", nil)
		if p == nil {
			return r
		}
		return r.WithContext(context.WithValue(r.Context(), principalContextKey{}, p))
	}

	t.Run("session caller passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, withPrincipal(&Principal{UserID: "user-1"}))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("api key caller rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, withPrincipal(&Principal{UserID: "user-1", APIKeyID: "key-1"}))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("no principal rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, withPrincipal(nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRequirePermission(t *testing.T) {
	handler := RequirePermission(PermSecurityAnalyze, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(p *Principal) *httptest.ResponseRecorder {
		r := httptest.NewRequest("POST", "/api/v1/security/analyze", nil)
		if p != nil {
			r = r.WithContext(context.WithValue(r.Context(), principalContextKey{}, p))
		}
		rec := httptest.NewRecorder()
		handler(rec, r)
		return rec
	}

	t.Run("key with permission", func(t *testing.T) {
		rec := request(&Principal{UserID: "u", APIKeyID: "k", Permissions: []string{PermSecurityAnalyze}})
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("key without permission", func(t *testing.T) {
		rec := request(&Principal{UserID: "u", APIKeyID: "k", Permissions: []string{PermFilterPII}})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("session caller unrestricted", func(t *testing.T) {
		rec := request(&Principal{UserID: "u"})
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := request(nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}
