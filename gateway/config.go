// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rampart/platform/shared/secrets"
	"rampart/platform/shared/types"
)

// devJWTSecret is the development fallback signing key. Production
// deployments must refuse to boot with it.
const devJWTSecret = "dev-secret-do-not-use-in-production"

// Config holds every gateway option. All values are read once at
// startup; nothing re-reads the environment afterwards.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	JWTSecretKey        string `yaml:"jwt_secret_key"`
	KeyEncryptionSecret string `yaml:"key_encryption_secret"`

	AccessTokenExpireMinutes int `yaml:"access_token_expire_minutes"`

	// PromptInjectionDetector selects the analysis pipeline:
	// "hybrid", "deberta" (deep only) or "regex".
	PromptInjectionDetector  string  `yaml:"prompt_injection_detector"`
	PromptInjectionEndpoint  string  `yaml:"prompt_injection_endpoint"`
	PromptInjectionUseONNX   bool    `yaml:"prompt_injection_use_onnx"`
	PromptInjectionFastMode  bool    `yaml:"prompt_injection_fast_mode"`
	PromptInjectionThreshold float64 `yaml:"prompt_injection_threshold"`

	ToxicityThreshold float64 `yaml:"toxicity_threshold"`

	// PIINEREndpoint enables the model-assisted entity pass on top of
	// the regex catalogue. Empty means regex-only detection.
	PIINEREndpoint string `yaml:"pii_ner_endpoint"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitPerHour   int `yaml:"rate_limit_per_hour"`

	CORSOrigins []string `yaml:"cors_origins"`

	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// SecretsManagerSecretName enables sourcing jwt_secret_key and
	// key_encryption_secret from AWS Secrets Manager. Environment
	// variables still win so local overrides keep working.
	SecretsManagerSecretName string `yaml:"secrets_manager_secret_name"`
	AWSRegion                string `yaml:"aws_region"`
}

// DeploymentMode derives the deployment mode from the environment name.
func (c *Config) DeploymentMode() types.DeploymentMode {
	if c.Environment == "production" {
		return types.DeploymentModeSaaS
	}
	return types.DeploymentModeSelfHosted
}

// SessionTTL returns the session token lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// LoadConfig builds the configuration from the environment, with an
// optional YAML overlay (RAMPART_CONFIG_FILE) and an optional Secrets
// Manager bundle for the signing and encryption secrets.
func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/rampart?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecretKey:        getEnv("JWT_SECRET_KEY", devJWTSecret),
		KeyEncryptionSecret: getEnv("RAMPART_KEY_ENCRYPTION_SECRET", ""),

		AccessTokenExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),

		PromptInjectionDetector:  getEnv("PROMPT_INJECTION_DETECTOR", "regex"),
		PromptInjectionEndpoint:  getEnv("PROMPT_INJECTION_ENDPOINT", ""),
		PromptInjectionUseONNX:   getEnvBool("PROMPT_INJECTION_USE_ONNX", true),
		PromptInjectionFastMode:  getEnvBool("PROMPT_INJECTION_FAST_MODE", false),
		PromptInjectionThreshold: getEnvFloat("PROMPT_INJECTION_THRESHOLD", 0.75),

		ToxicityThreshold: getEnvFloat("TOXICITY_THRESHOLD", 0.7),

		PIINEREndpoint: getEnv("PII_NER_ENDPOINT", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitPerHour:   getEnvInt("RATE_LIMIT_PER_HOUR", 1000),

		CORSOrigins: splitCommaList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		MaxRequestBytes: int64(getEnvInt("MAX_REQUEST_BYTES", 10<<20)),

		SecretsManagerSecretName: getEnv("SECRETS_MANAGER_SECRET_NAME", ""),
		AWSRegion:                getEnv("AWS_REGION", ""),
	}

	if path := os.Getenv("RAMPART_CONFIG_FILE"); path != "" {
		if err := overlayYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if cfg.SecretsManagerSecretName != "" {
		if err := overlaySecrets(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// overlayYAML merges values from a YAML config file. File values fill
// gaps and override environment defaults, matching the connector
// configuration convention.
func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// overlaySecrets fills the signing and encryption secrets from the
// Secrets Manager bundle. Environment values win: only unset (or
// dev-default) fields are overwritten.
func overlaySecrets(ctx context.Context, cfg *Config) error {
	store, err := secrets.NewAWSStore(ctx, secrets.AWSStoreOptions{Region: cfg.AWSRegion})
	if err != nil {
		return fmt.Errorf("failed to initialize secrets store: %w", err)
	}

	bundle, err := store.GetSecret(ctx, cfg.SecretsManagerSecretName)
	if err != nil {
		return fmt.Errorf("failed to fetch secret bundle: %w", err)
	}

	if cfg.JWTSecretKey == devJWTSecret {
		if v, ok := bundle["jwt_secret_key"]; ok {
			cfg.JWTSecretKey = v
		}
	}
	if cfg.KeyEncryptionSecret == "" {
		if v, ok := bundle["key_encryption_secret"]; ok {
			cfg.KeyEncryptionSecret = v
		}
	}
	return nil
}

// validate rejects configurations that would be unsafe to run.
func (c *Config) validate() error {
	if c.DeploymentMode().RequiresStrictSecrets() && c.JWTSecretKey == devJWTSecret {
		return fmt.Errorf("JWT_SECRET_KEY must be set in production")
	}
	if c.DeploymentMode().RequiresStrictSecrets() && c.KeyEncryptionSecret == "" {
		return fmt.Errorf("RAMPART_KEY_ENCRYPTION_SECRET must be set in production")
	}
	if c.AccessTokenExpireMinutes <= 0 || c.AccessTokenExpireMinutes > 30 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be between 1 and 30, got %d", c.AccessTokenExpireMinutes)
	}
	if c.PromptInjectionThreshold < 0 || c.PromptInjectionThreshold > 1 {
		return fmt.Errorf("PROMPT_INJECTION_THRESHOLD must be in [0,1], got %f", c.PromptInjectionThreshold)
	}
	switch c.PromptInjectionDetector {
	case "hybrid", "deberta", "regex":
	default:
		return fmt.Errorf("PROMPT_INJECTION_DETECTOR must be one of hybrid, deberta, regex; got %q", c.PromptInjectionDetector)
	}
	return nil
}

// getEnv returns the environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable parsed as int, or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable parsed as bool, or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable parsed as float64, or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
