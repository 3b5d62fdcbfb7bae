// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "DATABASE_URL", "REDIS_URL",
		"JWT_SECRET_KEY", "RAMPART_KEY_ENCRYPTION_SECRET",
		"ACCESS_TOKEN_EXPIRE_MINUTES",
		"PROMPT_INJECTION_DETECTOR", "PROMPT_INJECTION_ENDPOINT",
		"PROMPT_INJECTION_USE_ONNX", "PROMPT_INJECTION_FAST_MODE",
		"PROMPT_INJECTION_THRESHOLD", "TOXICITY_THRESHOLD",
		"PII_NER_ENDPOINT",
		"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_PER_HOUR",
		"CORS_ORIGINS", "MAX_REQUEST_BYTES",
		"SECRETS_MANAGER_SECRET_NAME", "RAMPART_CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadConfig(context.Background())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.PromptInjectionDetector != "regex" {
		t.Errorf("PromptInjectionDetector = %q", cfg.PromptInjectionDetector)
	}
	if cfg.RateLimitPerMinute != 60 || cfg.RateLimitPerHour != 1000 {
		t.Errorf("rate limits = %d/%d, want 60/1000", cfg.RateLimitPerMinute, cfg.RateLimitPerHour)
	}
	if cfg.SessionTTL() != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL())
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigDetectorKnobs(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadConfig(context.Background())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.PromptInjectionUseONNX {
		t.Error("PromptInjectionUseONNX default = false, want true")
	}
	if cfg.PromptInjectionFastMode {
		t.Error("PromptInjectionFastMode default = true, want false")
	}
	if cfg.PIINEREndpoint != "" {
		t.Errorf("PIINEREndpoint default = %q, want empty", cfg.PIINEREndpoint)
	}

	t.Setenv("PROMPT_INJECTION_USE_ONNX", "false")
	t.Setenv("PROMPT_INJECTION_FAST_MODE", "true")
	t.Setenv("PII_NER_ENDPOINT", "http://ner.internal:8500/label")

	cfg, err = LoadConfig(context.Background())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PromptInjectionUseONNX {
		t.Error("PROMPT_INJECTION_USE_ONNX=false not honored")
	}
	if !cfg.PromptInjectionFastMode {
		t.Error("PROMPT_INJECTION_FAST_MODE=true not honored")
	}
	if cfg.PIINEREndpoint != "http://ner.internal:8500/label" {
		t.Errorf("PIINEREndpoint = %q", cfg.PIINEREndpoint)
	}
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	if _, err := LoadConfig(context.Background()); err == nil {
		t.Fatal("production boot accepted with dev JWT secret")
	}

	t.Setenv("JWT_SECRET_KEY", "a-real-production-signing-key")
	if _, err := LoadConfig(context.Background()); err == nil {
		t.Fatal("production boot accepted without encryption secret")
	}

	t.Setenv("RAMPART_KEY_ENCRYPTION_SECRET", "a-real-encryption-secret")
	if _, err := LoadConfig(context.Background()); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"session ttl over ceiling", "ACCESS_TOKEN_EXPIRE_MINUTES", "120"},
		{"session ttl zero", "ACCESS_TOKEN_EXPIRE_MINUTES", "0"},
		{"unknown detector", "PROMPT_INJECTION_DETECTOR", "oracle"},
		{"threshold out of range", "PROMPT_INJECTION_THRESHOLD", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearGatewayEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(context.Background()); err == nil {
				t.Errorf("LoadConfig accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	clearGatewayEnv(t)

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	overlay := "port: \"9090\"\nrate_limit_per_minute: 120\ntoxicity_threshold: 0.5\n"
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("RAMPART_CONFIG_FILE", path)

	cfg, err := LoadConfig(context.Background())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want overlay value", cfg.Port)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d, want 120", cfg.RateLimitPerMinute)
	}
	if cfg.ToxicityThreshold != 0.5 {
		t.Errorf("ToxicityThreshold = %.2f, want 0.5", cfg.ToxicityThreshold)
	}
	// Fields absent from the overlay keep their defaults.
	if cfg.RateLimitPerHour != 1000 {
		t.Errorf("RateLimitPerHour = %d, want default", cfg.RateLimitPerHour)
	}
}

func TestSplitCommaList(t *testing.T) {
	got := splitCommaList(" https://app.rampart.dev , http://localhost:3000 ,, ")
	if len(got) != 2 || got[0] != "https://app.rampart.dev" || got[1] != "http://localhost:3000" {
		t.Errorf("splitCommaList = %v", got)
	}
}
