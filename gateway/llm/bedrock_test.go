// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	gotModelID string
	gotBody    []byte
	respBody   []byte
	err        error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.gotModelID = *params.ModelId
	f.gotBody = params.Body
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.respBody}, nil
}

func TestBedrockAnthropicFamily(t *testing.T) {
	fake := &fakeInvoker{
		respBody: []byte(`{
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "hello from bedrock"}],
			"usage": {"input_tokens": 20, "output_tokens": 6}
		}`),
	}
	p, err := NewBedrockProvider(context.Background(), BedrockConfig{Region: "us-west-2", Client: fake})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Prompt:       "say hello",
		SystemPrompt: "be brief",
		MaxTokens:    64,
	})
	require.NoError(t, err)

	require.Equal(t, bedrockDefaultModel, fake.gotModelID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(fake.gotBody, &body))
	require.Equal(t, "bedrock-2023-05-31", body["anthropic_version"])
	require.Equal(t, "be brief", body["system"])

	require.Equal(t, "hello from bedrock", resp.Content)
	require.Equal(t, 26, resp.TotalTokens())
	require.Equal(t, "end_turn", resp.StopReason)
}

func TestBedrockTitanFamily(t *testing.T) {
	fake := &fakeInvoker{
		respBody: []byte(`{
			"inputTextTokenCount": 8,
			"results": [{"outputText": "titan says hi", "tokenCount": 4, "completionReason": "FINISH"}]
		}`),
	}
	p, err := NewBedrockProvider(context.Background(), BedrockConfig{Client: fake})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Model:  "amazon.titan-text-express-v1",
		Prompt: "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "titan says hi", resp.Content)
	require.Equal(t, 8, resp.InputTokens)
	require.Equal(t, 4, resp.OutputTokens)
}

func TestBedrockUnsupportedFamily(t *testing.T) {
	p, err := NewBedrockProvider(context.Background(), BedrockConfig{Client: &fakeInvoker{}})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), CompletionRequest{
		Model:  "cohere.command-text-v14",
		Prompt: "hi",
	})
	require.Error(t, err)
}
