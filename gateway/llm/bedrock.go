// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const bedrockDefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// bedrockInvoker is the slice of the Bedrock runtime client we use.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig configures the Bedrock provider. Authentication uses
// ambient IAM credentials; no API key is stored.
type BedrockConfig struct {
	Region string
	Model  string
	Client bedrockInvoker
}

// BedrockProvider calls AWS Bedrock with Signature V4 auth. Anthropic
// and Amazon Titan model families are supported.
type BedrockProvider struct {
	client bedrockInvoker
	region string
	model  string
}

// NewBedrockProvider loads AWS configuration for the region and builds
// the runtime client.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Model == "" {
		cfg.Model = bedrockDefaultModel
	}

	client := cfg.Client
	if client == nil {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for region %s: %w", cfg.Region, err)
		}
		client = bedrockruntime.NewFromConfig(awsCfg)
	}

	return &BedrockProvider{client: client, region: cfg.Region, model: cfg.Model}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

// modelFamily keys the request and response shape off the model ID
// vendor prefix.
func modelFamily(model string) string {
	vendor, _, _ := strings.Cut(model, ".")
	return vendor
}

// Complete invokes the model with a family-specific body.
func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body, err := p.buildBody(req, model, maxTokens)
	if err != nil {
		return nil, err
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	resp, err := p.parseBody(output.Body, model)
	if err != nil {
		return nil, err
	}
	resp.Model = model
	resp.Latency = time.Since(start)
	return resp, nil
}

func (p *BedrockProvider) buildBody(req CompletionRequest, model string, maxTokens int) ([]byte, error) {
	switch modelFamily(model) {
	case "anthropic":
		payload := map[string]any{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        maxTokens,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}
		if req.SystemPrompt != "" {
			payload["system"] = req.SystemPrompt
		}
		if req.Temperature > 0 {
			payload["temperature"] = req.Temperature
		}
		return json.Marshal(payload)
	case "amazon":
		prompt := req.Prompt
		if req.SystemPrompt != "" {
			prompt = req.SystemPrompt + "\n\n" + prompt
		}
		return json.Marshal(map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": maxTokens,
				"temperature":   req.Temperature,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported bedrock model family: %s", modelFamily(model))
	}
}

func (p *BedrockProvider) parseBody(body []byte, model string) (*CompletionResponse, error) {
	switch modelFamily(model) {
	case "anthropic":
		var resp struct {
			StopReason string `json:"stop_reason"`
			Content    []struct {
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse bedrock response: %w", err)
		}

		var content strings.Builder
		for _, block := range resp.Content {
			content.WriteString(block.Text)
		}
		return &CompletionResponse{
			Content:      content.String(),
			StopReason:   resp.StopReason,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}, nil
	case "amazon":
		var resp struct {
			InputTextTokenCount int `json:"inputTextTokenCount"`
			Results             []struct {
				OutputText       string `json:"outputText"`
				TokenCount       int    `json:"tokenCount"`
				CompletionReason string `json:"completionReason"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse bedrock response: %w", err)
		}
		if len(resp.Results) == 0 {
			return nil, fmt.Errorf("bedrock returned no results")
		}
		return &CompletionResponse{
			Content:      resp.Results[0].OutputText,
			StopReason:   resp.Results[0].CompletionReason,
			InputTokens:  resp.InputTextTokenCount,
			OutputTokens: resp.Results[0].TokenCount,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported bedrock model family: %s", modelFamily(model))
	}
}

// HealthCheck issues a minimal completion against the default model.
func (p *BedrockProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, CompletionRequest{Prompt: "ping", MaxTokens: 1})
	return err
}
