package injection

import (
	"context"
	"fmt"
	"time"
)

// Mode represents the prompt injection analysis mode.
type Mode string

const (
	// ModeOff disables prompt injection analysis.
	ModeOff Mode = "off"

	// ModeRegex enables pattern-based detection using the built-in
	// catalogue. This mode is fast (<1ms) and has no external dependencies.
	ModeRegex Mode = "regex"

	// ModeHybrid enables two-stage detection: the regex pre-filter runs
	// first and a transformer classifier is consulted for suspicious
	// inputs. Requires a configured inference endpoint.
	ModeHybrid Mode = "hybrid"
)

// DefaultMode is the default analysis mode (security-first approach).
const DefaultMode = ModeRegex

// ValidModes returns all valid analysis modes.
func ValidModes() []Mode {
	return []Mode{ModeOff, ModeRegex, ModeHybrid}
}

// IsValid checks if the mode is a valid analysis mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeOff, ModeRegex, ModeHybrid:
		return true
	default:
		return false
	}
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a string into a Mode, returning an error if invalid.
func ParseMode(s string) (Mode, error) {
	mode := Mode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid analysis mode: %q, valid modes are: off, regex, hybrid", s)
	}
	return mode, nil
}

// Action is the enforcement recommendation derived from the risk score.
type Action string

const (
	ActionBlock   Action = "block"
	ActionFlag    Action = "flag"
	ActionMonitor Action = "monitor"
	ActionAllow   Action = "allow"
)

// ActionForRisk maps a risk score onto the enforcement ladder.
func ActionForRisk(risk float64) Action {
	switch {
	case risk >= 0.5:
		return ActionFlag
	case risk >= 0.3:
		return ActionMonitor
	default:
		return ActionAllow
	}
}

// actionAndRecommendation maps a risk score onto the enforcement ladder
// including the block tiers used for full analysis results.
func actionAndRecommendation(risk float64) (Action, string) {
	switch {
	case risk >= 0.9:
		return ActionBlock, "BLOCK - Critical injection attempt detected"
	case risk >= 0.75:
		return ActionBlock, "BLOCK - High-risk injection attempt"
	case risk >= 0.5:
		return ActionFlag, "FLAG - Moderate risk, review required"
	case risk >= 0.3:
		return ActionMonitor, "MONITOR - Low risk, log for analysis"
	default:
		return ActionAllow, "ALLOW - No significant risk detected"
	}
}

// Match describes a single pattern hit inside the analyzed text.
type Match struct {
	// Name is the pattern identifier (e.g. "instruction_override").
	Name string `json:"name"`

	// Severity is the pattern severity in [0,1].
	Severity float64 `json:"severity"`

	// Description explains what the pattern detects.
	Description string `json:"description"`

	// MatchedText is the text span that triggered the pattern. Empty for
	// synthetic detections (context markers, scope violations).
	MatchedText string `json:"matched_text,omitempty"`

	// Start and End delimit the match position, or -1 for synthetic
	// detections without a position.
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result represents the outcome of a prompt injection analysis.
type Result struct {
	// IsInjection indicates whether the input is classified as an
	// injection attempt (risk score above 0.5, or the deep verdict in
	// hybrid mode).
	IsInjection bool `json:"is_injection"`

	// Confidence is the combined confidence in [0,1]. Equal to RiskScore
	// for regex-only analysis.
	Confidence float64 `json:"confidence"`

	// RiskScore is the scored risk in [0,1].
	RiskScore float64 `json:"risk_score"`

	// Patterns lists every pattern that matched.
	Patterns []Match `json:"detected_patterns"`

	// Action is the enforcement recommendation.
	Action Action `json:"action"`

	// Recommendation is the human-readable recommendation string.
	Recommendation string `json:"recommendation"`

	// AnalysisMode records which pipeline produced the result: "regex",
	// "hybrid", or "regex_fallback" when the deep pass was unavailable.
	AnalysisMode string `json:"analysis_mode"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration_ns"`

	// Deep carries the transformer stage breakdown in hybrid mode.
	Deep *DeepScore `json:"deep,omitempty"`
}

// IndirectResult is the outcome of scanning third-party content (tool
// output, retrieved documents) for embedded instructions.
type IndirectResult struct {
	IsIndirectInjection bool     `json:"is_indirect_injection"`
	Patterns            []string `json:"detected_patterns"`
	Source              string   `json:"source"`
	Recommendation      string   `json:"recommendation"`
}

// Detector is the interface for prompt injection analysis.
type Detector interface {
	// Detect analyzes a single text for injection attempts.
	Detect(ctx context.Context, text string) *Result

	// DetectBatch analyzes up to MaxBatchSize texts in one call.
	DetectBatch(ctx context.Context, texts []string) []*Result

	// Mode returns the analysis mode of this detector.
	Mode() Mode
}

// MaxBatchSize caps the number of texts per batch analysis.
const MaxBatchSize = 100

// NoOpDetector is a detector that does nothing (used for ModeOff).
type NoOpDetector struct{}

// Detect always returns a clean result.
func (d *NoOpDetector) Detect(_ context.Context, _ string) *Result {
	return &Result{
		IsInjection:    false,
		Action:         ActionAllow,
		Recommendation: "ALLOW - No significant risk detected",
		AnalysisMode:   string(ModeOff),
	}
}

// DetectBatch always returns clean results.
func (d *NoOpDetector) DetectBatch(ctx context.Context, texts []string) []*Result {
	results := make([]*Result, len(texts))
	for i := range texts {
		results[i] = d.Detect(ctx, "")
	}
	return results
}

// Mode returns ModeOff.
func (d *NoOpDetector) Mode() Mode {
	return ModeOff
}

// detectorRegistry holds registered detector factories.
var detectorRegistry = make(map[Mode]func() Detector)

// RegisterDetector registers a detector factory for a given mode.
func RegisterDetector(mode Mode, factory func() Detector) {
	detectorRegistry[mode] = factory
}

// NewDetector creates a new detector for the given mode.
// Returns an error if the mode is not available (e.g. hybrid mode
// without a configured inference endpoint).
func NewDetector(mode Mode) (Detector, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid analysis mode: %q", mode)
	}

	if mode == ModeOff {
		return &NoOpDetector{}, nil
	}

	factory, ok := detectorRegistry[mode]
	if !ok {
		if mode == ModeHybrid {
			return nil, fmt.Errorf("hybrid mode requires a configured inference endpoint")
		}
		return nil, fmt.Errorf("detector not registered for mode: %q", mode)
	}

	return factory(), nil
}

// MustNewDetector creates a new detector, panicking on error.
// Use only in initialization code where errors are programming mistakes.
func MustNewDetector(mode Mode) Detector {
	detector, err := NewDetector(mode)
	if err != nil {
		panic(fmt.Sprintf("failed to create detector: %v", err))
	}
	return detector
}

func init() {
	// NoOp detector is always available
	RegisterDetector(ModeOff, func() Detector { return &NoOpDetector{} })
}
