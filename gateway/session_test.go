// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionMintAndVerify(t *testing.T) {
	m := NewSessionManager("test-secret", 15*time.Minute)

	token, err := m.Mint("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestSessionTTLClamped(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"zero", 0, 30 * time.Minute},
		{"negative", -time.Minute, 30 * time.Minute},
		{"over ceiling", 2 * time.Hour, 30 * time.Minute},
		{"within bounds", 10 * time.Minute, 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSessionManager("s", tt.ttl).TTL(); got != tt.want {
				t.Errorf("TTL = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionRejectsWrongSecret(t *testing.T) {
	token, err := NewSessionManager("secret-a", time.Minute).Mint("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := NewSessionManager("secret-b", time.Minute).Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Verify with wrong secret = %v, want ErrUnauthorized", err)
	}
}

func TestSessionRejectsExpired(t *testing.T) {
	m := NewSessionManager("test-secret", time.Minute)

	past := time.Now().UTC().Add(-time.Hour)
	claims := SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Verify expired = %v, want ErrUnauthorized", err)
	}
}

func TestSessionRejectsUnsignedAlgorithm(t *testing.T) {
	m := NewSessionManager("test-secret", time.Minute)

	claims := SessionClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Verify alg=none = %v, want ErrUnauthorized", err)
	}
}

func TestSessionRejectsMissingExpiry(t *testing.T) {
	m := NewSessionManager("test-secret", time.Minute)

	claims := SessionClaims{UserID: "user-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Verify without exp = %v, want ErrUnauthorized", err)
	}
}
