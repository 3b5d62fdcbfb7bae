// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"testing"
)

func TestCredentialCipherRoundTrip(t *testing.T) {
	c, err := NewCredentialCipher("unit-test-secret")
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}

	plaintext := "sk-ant-api03-abcdef123456"
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	opened, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if opened != plaintext {
		t.Errorf("Decrypt = %q, want %q", opened, plaintext)
	}
}

func TestCredentialCipherNonceUnique(t *testing.T) {
	c, _ := NewCredentialCipher("unit-test-secret")

	a, _ := c.Encrypt("same-credential")
	b, _ := c.Encrypt("same-credential")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestCredentialCipherWrongSecret(t *testing.T) {
	a, _ := NewCredentialCipher("secret-a")
	b, _ := NewCredentialCipher("secret-b")

	sealed, _ := a.Encrypt("sk-test")
	if _, err := b.Decrypt(sealed); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Decrypt with wrong secret = %v, want ErrDecryptFailed", err)
	}
}

func TestCredentialCipherGarbageInput(t *testing.T) {
	c, _ := NewCredentialCipher("unit-test-secret")

	for _, input := range []string{"", "not-base64!!!", "YWJj"} {
		if _, err := c.Decrypt(input); !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("Decrypt(%q) = %v, want ErrDecryptFailed", input, err)
		}
	}
}

func TestCredentialCipherRequiresSecret(t *testing.T) {
	if _, err := NewCredentialCipher(""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sk-ant-api03-abcdef123456", "sk-ant-****3456"},
		{"sk-proj-xyz789", "sk-****z789"},
		{"raw-credential-value", "****alue"},
		{"abc", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
