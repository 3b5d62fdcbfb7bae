// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAPIKeyFormat(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(key, "rmp_live_") {
		t.Errorf("key %q missing rmp_live_ prefix", key)
	}
	if len(key) != len("rmp_live_")+43 {
		t.Errorf("key length = %d, want %d", len(key), len("rmp_live_")+43)
	}

	other, _ := GenerateAPIKey()
	if key == other {
		t.Error("two generated keys are identical")
	}
}

func TestKeyPreview(t *testing.T) {
	key := "rmp_live_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmno"
	preview := keyPreview(key)
	if !strings.HasPrefix(preview, key[:12]) {
		t.Errorf("preview %q does not start with the stored prefix", preview)
	}
	if !strings.Contains(preview, "****") {
		t.Errorf("preview %q missing mask", preview)
	}
	if !strings.HasSuffix(preview, key[len(key)-4:]) {
		t.Errorf("preview %q does not end with the last four characters", preview)
	}
}

func TestCreateKeyEnforcesLimit(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	_, _, err := NewAPIKeyRepository(db).Create(context.Background(), "user-1", CreateKeyParams{Name: "one too many"})
	if !errors.Is(err, ErrKeyLimitReached) {
		t.Errorf("Create = %v, want ErrKeyLimitReached", err)
	}
}

func TestVerifyKey(t *testing.T) {
	plaintext := "rmp_live_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmno"
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	t.Run("valid key", func(t *testing.T) {
		db, mock, _ := sqlmock.New()
		defer db.Close()

		mock.ExpectQuery("SELECT k.id, k.user_id").
			WithArgs(plaintext[:12]).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "key_hash", "permissions", "expires_at", "email", "active"}).
				AddRow("key-1", "user-1", string(hash), []byte(`["security:analyze"]`), nil, "alice@example.com", true))
		mock.ExpectExec("UPDATE rampart_api_keys SET last_used_at").
			WithArgs("key-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		principal, err := NewAPIKeyRepository(db).Verify(context.Background(), plaintext)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if principal.APIKeyID != "key-1" || principal.UserID != "user-1" {
			t.Errorf("principal = %+v", principal)
		}
		if !principal.HasPermission(PermSecurityAnalyze) {
			t.Error("missing granted permission")
		}
		if principal.HasPermission(PermLLMChat) {
			t.Error("has permission that was not granted")
		}

		// The last-used touch runs off the request path.
		time.Sleep(100 * time.Millisecond)
	})

	t.Run("wrong secret same prefix", func(t *testing.T) {
		db, mock, _ := sqlmock.New()
		defer db.Close()

		mock.ExpectQuery("SELECT k.id, k.user_id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "key_hash", "permissions", "expires_at", "email", "active"}).
				AddRow("key-1", "user-1", string(hash), []byte(`[]`), nil, "alice@example.com", true))

		wrong := plaintext[:len(plaintext)-4] + "XXXX"
		if _, err := NewAPIKeyRepository(db).Verify(context.Background(), wrong); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Verify = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("expired key", func(t *testing.T) {
		db, mock, _ := sqlmock.New()
		defer db.Close()

		expired := time.Now().UTC().Add(-time.Hour)
		mock.ExpectQuery("SELECT k.id, k.user_id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "key_hash", "permissions", "expires_at", "email", "active"}).
				AddRow("key-1", "user-1", string(hash), []byte(`[]`), expired, "alice@example.com", true))

		if _, err := NewAPIKeyRepository(db).Verify(context.Background(), plaintext); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Verify expired = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("inactive owner", func(t *testing.T) {
		db, mock, _ := sqlmock.New()
		defer db.Close()

		mock.ExpectQuery("SELECT k.id, k.user_id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "key_hash", "permissions", "expires_at", "email", "active"}).
				AddRow("key-1", "user-1", string(hash), []byte(`[]`), nil, "alice@example.com", false))

		if _, err := NewAPIKeyRepository(db).Verify(context.Background(), plaintext); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Verify inactive owner = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		db, _, _ := sqlmock.New()
		defer db.Close()

		if _, err := NewAPIKeyRepository(db).Verify(context.Background(), "sk-not-a-rampart-key"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Verify malformed = %v, want ErrUnauthorized", err)
		}
	})
}

func TestRevokeUnknownKey(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectExec("UPDATE rampart_api_keys SET active = false").
		WithArgs("missing", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewAPIKeyRepository(db).Revoke(context.Background(), "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Revoke = %v, want ErrNotFound", err)
	}
}
