// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

// Package secrets sources gateway secrets (signing keys, encryption
// secrets, provider admin keys) from AWS Secrets Manager with an
// environment-variable fallback for local development.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Store retrieves named secret bundles. A bundle is a flat map of
// string values (e.g. {"jwt_secret_key": "...", "key_encryption_secret": "..."}).
type Store interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// AWSStore implements Store using AWS Secrets Manager with a local
// read-through cache so a restart storm cannot hammer the API.
type AWSStore struct {
	client *secretsmanager.Client
	cache  map[string]*cacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type cacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSStoreOptions holds options for creating an AWSStore
type AWSStoreOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSStore creates a Secrets Manager backed store.
func NewAWSStore(ctx context.Context, opts AWSStoreOptions) (*AWSStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS] ", log.LstdFlags)
	}

	cfgOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSStore{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*cacheEntry),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// GetSecret retrieves a secret bundle from AWS Secrets Manager.
// The secret value is expected to be a JSON object with string values;
// a bare string is returned under the key "value".
func (s *AWSStore) GetSecret(ctx context.Context, name string) (map[string]string, error) {
	s.mu.RLock()
	entry, exists := s.cache[name]
	s.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	s.logger.Printf("Fetching secret %s from AWS Secrets Manager", maskName(name))

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskName(name), err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskName(name))
	}

	var bundle map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &bundle); err != nil {
		// Single-value secrets (just an API key) are not JSON
		bundle = map[string]string{"value": *result.SecretString}
	}

	s.mu.Lock()
	s.cache[name] = &cacheEntry{value: bundle, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return bundle, nil
}

// Invalidate removes a secret from the cache.
func (s *AWSStore) Invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

// maskName masks the secret identifier for logging (last 8 characters only)
func maskName(name string) string {
	if len(name) <= 12 {
		return "***"
	}
	return "..." + name[len(name)-8:]
}

// EnvStore implements Store from process environment variables, for
// development and self-hosted deployments without AWS access. The
// secret name maps to env vars by upper-casing: bundle key "jwt_secret_key"
// is read from JWT_SECRET_KEY.
type EnvStore struct {
	keys []string
}

// NewEnvStore creates an environment-backed store exposing the given
// bundle keys.
func NewEnvStore(keys ...string) *EnvStore {
	return &EnvStore{keys: keys}
}

// GetSecret builds the bundle from the environment. Missing variables
// are simply absent from the bundle.
func (s *EnvStore) GetSecret(_ context.Context, _ string) (map[string]string, error) {
	bundle := make(map[string]string, len(s.keys))
	for _, k := range s.keys {
		if v := os.Getenv(envName(k)); v != "" {
			bundle[k] = v
		}
	}
	return bundle, nil
}

func envName(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
