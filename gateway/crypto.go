// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Provider credential encryption. Credentials rest as
// base64(nonce || AES-256-GCM ciphertext); the key is derived once from
// the process secret with PBKDF2-HMAC-SHA256.
const (
	credentialKDFIterations = 100000
	credentialKDFSalt       = "rampart-key-salt"
	credentialNonceSize     = 12
)

// ErrDecryptFailed is returned when a stored credential cannot be
// opened, typically because the encryption secret changed.
var ErrDecryptFailed = errors.New("failed to decrypt credential")

// CredentialCipher seals and opens provider credentials. Safe for
// concurrent use; the AEAD is constructed once.
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher derives the encryption key from the process
// secret and prepares the AEAD.
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret must not be empty")
	}

	key := pbkdf2.Key([]byte(secret), []byte(credentialKDFSalt), credentialKDFIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &CredentialCipher{aead: aead}, nil
}

// Encrypt seals a plaintext credential.
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, credentialNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// Decrypt opens a stored credential. The plaintext is returned
// byte-for-byte as stored; callers must never log it.
func (c *CredentialCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < credentialNonceSize+1 {
		return "", ErrDecryptFailed
	}

	nonce, sealed := raw[:credentialNonceSize], raw[credentialNonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// MaskCredential produces the displayable form of a provider key:
// the recognizable vendor prefix, a masked run, and the last four
// characters.
func MaskCredential(plaintext string) string {
	if len(plaintext) <= 4 {
		return "****"
	}

	last4 := plaintext[len(plaintext)-4:]
	for _, prefix := range []string{"sk-ant-", "sk-"} {
		if strings.HasPrefix(plaintext, prefix) {
			return prefix + "****" + last4
		}
	}
	return "****" + last4
}
