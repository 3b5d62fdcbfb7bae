// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider is the unified interface for upstream LLM backends.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic",
	// "bedrock").
	Name() string

	// Complete generates a completion for the given request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// HealthCheck verifies the backend is reachable and the
	// credential is accepted.
	HealthCheck(ctx context.Context) error
}

// CompletionRequest is a provider-neutral completion request.
type CompletionRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse is a provider-neutral completion response with
// the token accounting the usage recorder needs.
type CompletionResponse struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	StopReason   string        `json:"stop_reason,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Latency      time.Duration `json:"-"`
}

// TotalTokens is the combined prompt and completion token count.
func (r *CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// APIError is a non-2xx answer from an upstream provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsAuthError reports whether the upstream rejected the credential.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsRateLimitError reports whether the upstream throttled the call.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == 429
}

// NewProvider builds a provider for the named backend using the
// caller's decrypted credential. For bedrock the credential is the AWS
// region; authentication rides on ambient IAM credentials.
func NewProvider(ctx context.Context, name, credential string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{APIKey: credential})
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{APIKey: credential})
	case "bedrock":
		return NewBedrockProvider(ctx, BedrockConfig{Region: credential})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
