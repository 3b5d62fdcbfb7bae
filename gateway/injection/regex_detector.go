package injection

import (
	"context"
	"strings"
	"time"
)

// RegexDetector implements pattern-based prompt injection detection.
// It scores the input against the built-in catalogue plus two synthetic
// checks (context marker density and scope violations).
type RegexDetector struct {
	patterns    *PatternSet
	maxInputLen int
}

// RegexDetectorOption is a functional option for configuring RegexDetector.
type RegexDetectorOption func(*RegexDetector)

// WithPatternSet sets a custom pattern set for the detector.
func WithPatternSet(ps *PatternSet) RegexDetectorOption {
	return func(d *RegexDetector) {
		d.patterns = ps
	}
}

// WithMaxInputLength sets the maximum input length to analyze.
func WithMaxInputLength(maxLen int) RegexDetectorOption {
	return func(d *RegexDetector) {
		d.maxInputLen = maxLen
	}
}

// NewRegexDetector creates a new regex detector with the given options.
func NewRegexDetector(opts ...RegexDetectorOption) *RegexDetector {
	d := &RegexDetector{
		patterns:    NewPatternSet(),
		maxInputLen: 1048576, // 1MB default
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect analyzes the text for injection attempts.
func (d *RegexDetector) Detect(ctx context.Context, text string) *Result {
	start := time.Now()

	select {
	case <-ctx.Done():
		return &Result{
			Action:         ActionAllow,
			Recommendation: "ALLOW - No significant risk detected",
			AnalysisMode:   string(ModeRegex),
			Duration:       time.Since(start),
		}
	default:
	}

	if len(text) > d.maxInputLen {
		text = text[:d.maxInputLen]
	}

	var detected []Match
	maxSeverity := 0.0

	for _, pattern := range d.patterns.Patterns() {
		for _, loc := range pattern.Regex.FindAllStringIndex(text, -1) {
			detected = append(detected, Match{
				Name:        pattern.Name,
				Severity:    pattern.Severity,
				Description: pattern.Description,
				MatchedText: text[loc[0]:loc[1]],
				Start:       loc[0],
				End:         loc[1],
			})
			if pattern.Severity > maxSeverity {
				maxSeverity = pattern.Severity
			}
		}
	}

	if score := contextMarkerScore(text); score > 0 {
		detected = append(detected, Match{
			Name:        "context_marker_manipulation",
			Severity:    score,
			Description: "Suspicious use of context markers",
			Start:       -1,
			End:         -1,
		})
		if score > maxSeverity {
			maxSeverity = score
		}
	}

	if score := scopeViolationScore(text); score > 0 {
		detected = append(detected, Match{
			Name:        "scope_violation",
			Severity:    score,
			Description: "Attempts to access out-of-scope information",
			Start:       -1,
			End:         -1,
		})
		if score > maxSeverity {
			maxSeverity = score
		}
	}

	// Weight by severity and number of detections
	risk := 0.0
	if len(detected) > 0 {
		risk = maxSeverity + float64(len(detected))*0.05
		if risk > 1.0 {
			risk = 1.0
		}
	}

	action, recommendation := actionAndRecommendation(risk)

	return &Result{
		IsInjection:    risk > 0.5,
		Confidence:     risk,
		RiskScore:      risk,
		Patterns:       detected,
		Action:         action,
		Recommendation: recommendation,
		AnalysisMode:   string(ModeRegex),
		Duration:       time.Since(start),
	}
}

// DetectBatch analyzes each text independently.
func (d *RegexDetector) DetectBatch(ctx context.Context, texts []string) []*Result {
	results := make([]*Result, len(texts))
	for i, text := range texts {
		results[i] = d.Detect(ctx, text)
	}
	return results
}

// Mode returns ModeRegex.
func (d *RegexDetector) Mode() Mode {
	return ModeRegex
}

// contextMarkerScore scores the density of distinct conversation
// structure markers. Multiple markers in user input is suspicious.
func contextMarkerScore(text string) float64 {
	lower := strings.ToLower(text)
	count := 0
	for _, marker := range contextMarkers {
		if strings.Contains(lower, marker) {
			count++
		}
	}

	switch {
	case count >= 3:
		return 0.8
	case count == 2:
		return 0.6
	case count == 1:
		return 0.3
	default:
		return 0.0
	}
}

// scopeViolationScore checks for attempts to extract the system prompt
// or configuration.
func scopeViolationScore(text string) float64 {
	for _, pattern := range scopePatterns {
		if pattern.MatchString(text) {
			return 0.85
		}
	}
	return 0.0
}

// ScanIndirect analyzes third-party content for embedded instructions
// that would fire when the content is later processed by a model.
func (d *RegexDetector) ScanIndirect(_ context.Context, text, source string) *IndirectResult {
	if source == "" {
		source = "unknown"
	}

	var detected []string
	for _, pattern := range indirectPatterns {
		if pattern.MatchString(text) {
			detected = append(detected, pattern.String())
		}
	}

	recommendation := "SAFE"
	if len(detected) > 0 {
		recommendation = "QUARANTINE"
	}

	return &IndirectResult{
		IsIndirectInjection: len(detected) > 0,
		Patterns:            detected,
		Source:              source,
		Recommendation:      recommendation,
	}
}

func init() {
	// Regex detector is always available
	RegisterDetector(ModeRegex, func() Detector {
		return NewRegexDetector()
	})
}
