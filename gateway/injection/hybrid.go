package injection

import (
	"context"
	"time"
)

// HybridDetector combines the regex pre-filter with a transformer
// classifier. The regex stage runs on every input; the classifier is
// consulted only when the regex risk score reaches the trigger
// threshold, keeping the common case fast.
type HybridDetector struct {
	regex          *RegexDetector
	deep           DeepClassifier
	regexThreshold float64
}

// HybridDetectorOption is a functional option for configuring HybridDetector.
type HybridDetectorOption func(*HybridDetector)

// WithRegexDetector sets a custom regex stage.
func WithRegexDetector(d *RegexDetector) HybridDetectorOption {
	return func(h *HybridDetector) {
		h.regex = d
	}
}

// WithRegexTrigger sets the regex risk score at which the deep stage runs.
func WithRegexTrigger(threshold float64) HybridDetectorOption {
	return func(h *HybridDetector) {
		h.regexThreshold = threshold
	}
}

// NewHybridDetector creates a hybrid detector around the given classifier.
func NewHybridDetector(deep DeepClassifier, opts ...HybridDetectorOption) *HybridDetector {
	h := &HybridDetector{
		regex:          NewRegexDetector(),
		deep:           deep,
		regexThreshold: 0.3,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Detect runs the two-stage analysis. When the classifier is
// unavailable or fails, the regex verdict is returned with
// AnalysisMode "regex_fallback" so callers can see the degradation.
func (h *HybridDetector) Detect(ctx context.Context, text string) *Result {
	start := time.Now()

	regexResult := h.regex.Detect(ctx, text)

	if h.deep == nil || regexResult.RiskScore < h.regexThreshold {
		// Low risk, regex is sufficient
		regexResult.Duration = time.Since(start)
		return regexResult
	}

	deepScore, err := h.deep.Classify(ctx, text)
	if err != nil {
		regexResult.AnalysisMode = "regex_fallback"
		regexResult.Duration = time.Since(start)
		return regexResult
	}

	merged := h.merge(regexResult, deepScore)
	merged.Duration = time.Since(start)
	return merged
}

// DetectBatch runs the regex stage on every text and batches the deep
// stage for the suspicious subset.
func (h *HybridDetector) DetectBatch(ctx context.Context, texts []string) []*Result {
	results := make([]*Result, len(texts))

	var deepTexts []string
	var deepIndices []int

	for i, text := range texts {
		regexResult := h.regex.Detect(ctx, text)
		results[i] = regexResult

		if h.deep != nil && regexResult.RiskScore >= h.regexThreshold {
			deepTexts = append(deepTexts, text)
			deepIndices = append(deepIndices, i)
		}
	}

	if len(deepTexts) == 0 {
		return results
	}

	deepScores, err := h.deep.ClassifyBatch(ctx, deepTexts)
	if err != nil {
		for _, idx := range deepIndices {
			results[idx].AnalysisMode = "regex_fallback"
		}
		return results
	}

	for j, idx := range deepIndices {
		results[idx] = h.merge(results[idx], deepScores[j])
	}
	return results
}

// Mode returns ModeHybrid.
func (h *HybridDetector) Mode() Mode {
	return ModeHybrid
}

// ScanIndirect delegates to the regex stage; indirect content scanning
// has no deep pass.
func (h *HybridDetector) ScanIndirect(ctx context.Context, text, source string) *IndirectResult {
	return h.regex.ScanIndirect(ctx, text, source)
}

// Classifier stage weights. The classifier dominates because its
// accuracy is substantially higher than the pattern catalogue's.
const (
	deepWeight  = 0.7
	regexWeight = 0.3
)

// merge combines the regex and classifier results. The verdict follows
// the classifier; the confidence is the weighted blend.
func (h *HybridDetector) merge(regexResult *Result, deep *DeepScore) *Result {
	combined := deep.Confidence*deepWeight + regexResult.RiskScore*regexWeight
	action, recommendation := actionAndRecommendation(combined)

	return &Result{
		IsInjection:    deep.IsInjection,
		Confidence:     combined,
		RiskScore:      combined,
		Patterns:       regexResult.Patterns,
		Action:         action,
		Recommendation: recommendation,
		AnalysisMode:   string(ModeHybrid),
		Deep:           deep,
	}
}
