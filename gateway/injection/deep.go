package injection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DeepScore is the transformer stage verdict for a single text.
type DeepScore struct {
	// IsInjection is true when the injection score meets the classifier
	// threshold.
	IsInjection bool `json:"is_injection"`

	// Confidence is the injection probability in [0,1].
	Confidence float64 `json:"confidence"`

	// Label is "INJECTION" or "SAFE".
	Label string `json:"label"`

	// Model identifies the classifier that produced the score.
	Model string `json:"model,omitempty"`
}

// DeepClassifier scores texts with a sequence classification model.
// Implementations must be safe for concurrent use.
type DeepClassifier interface {
	// Classify scores a single text.
	Classify(ctx context.Context, text string) (*DeepScore, error)

	// ClassifyBatch scores multiple texts in one round trip.
	ClassifyBatch(ctx context.Context, texts []string) ([]*DeepScore, error)

	// Name identifies the classifier for logging and result metadata.
	Name() string
}

// maxClassifierChars bounds the text sent to the classifier. The model
// truncates at 512 tokens; four chars per token is a safe estimate.
const maxClassifierChars = 512 * 4

// HTTPClassifier calls a text-classification inference endpoint
// (TorchServe/Triton style): POST {"inputs": [...]} returning one
// {label, score} list per input.
type HTTPClassifier struct {
	endpoint  string
	modelName string
	runtime   string
	threshold float64
	client    *http.Client
}

// HTTPClassifierOption is a functional option for configuring HTTPClassifier.
type HTTPClassifierOption func(*HTTPClassifier)

// WithThreshold sets the minimum injection score for an INJECTION verdict.
func WithThreshold(threshold float64) HTTPClassifierOption {
	return func(c *HTTPClassifier) {
		c.threshold = threshold
	}
}

// WithRuntime selects the inference runtime ("onnx" for the optimized
// path, "torch" otherwise).
func WithRuntime(runtime string) HTTPClassifierOption {
	return func(c *HTTPClassifier) {
		c.runtime = runtime
	}
}

// WithHTTPClient sets a custom HTTP client (used in tests).
func WithHTTPClient(client *http.Client) HTTPClassifierOption {
	return func(c *HTTPClassifier) {
		c.client = client
	}
}

// WithModelName overrides the model identifier reported in results.
func WithModelName(name string) HTTPClassifierOption {
	return func(c *HTTPClassifier) {
		c.modelName = name
	}
}

// NewHTTPClassifier creates a classifier client for the given endpoint.
func NewHTTPClassifier(endpoint string, opts ...HTTPClassifierOption) *HTTPClassifier {
	c := &HTTPClassifier{
		endpoint:  endpoint,
		modelName: "deberta-v3-base-prompt-injection-v2",
		runtime:   "onnx",
		threshold: 0.75,
		client:    &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the model identifier.
func (c *HTTPClassifier) Name() string {
	return c.modelName
}

type classifyRequest struct {
	Inputs  []string `json:"inputs"`
	Runtime string   `json:"runtime,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify scores a single text.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (*DeepScore, error) {
	scores, err := c.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return scores[0], nil
}

// ClassifyBatch scores multiple texts in one round trip.
func (c *HTTPClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]*DeepScore, error) {
	inputs := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > maxClassifierChars {
			text = text[:maxClassifierChars]
		}
		inputs[i] = text
	}

	body, err := json.Marshal(classifyRequest{Inputs: inputs, Runtime: c.runtime})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, snippet)
	}

	var predictions [][]labelScore
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	if len(predictions) != len(texts) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d inputs", len(predictions), len(texts))
	}

	scores := make([]*DeepScore, len(predictions))
	for i, labels := range predictions {
		scores[i] = c.toScore(labels)
	}
	return scores, nil
}

// toScore converts classifier label scores into a DeepScore. The
// injection probability is the INJECTION label score; when only the
// top label is returned it is inverted for SAFE predictions.
func (c *HTTPClassifier) toScore(labels []labelScore) *DeepScore {
	injectionScore := 0.0
	sawInjection := false
	for _, ls := range labels {
		if ls.Label == "INJECTION" {
			injectionScore = ls.Score
			sawInjection = true
			break
		}
	}
	if !sawInjection && len(labels) > 0 {
		injectionScore = 1 - labels[0].Score
	}

	isInjection := injectionScore >= c.threshold
	label := "SAFE"
	if isInjection {
		label = "INJECTION"
	}

	return &DeepScore{
		IsInjection: isInjection,
		Confidence:  injectionScore,
		Label:       label,
		Model:       c.modelName,
	}
}
