package injection

import (
	"regexp"
)

// Pattern represents a prompt injection detection pattern.
type Pattern struct {
	// Name is a stable identifier for the pattern.
	Name string

	// Regex is the compiled regular expression.
	Regex *regexp.Regexp

	// Severity indicates the risk contribution in [0,1].
	Severity float64

	// Description explains what this pattern detects.
	Description string
}

// PatternSet holds a collection of injection patterns.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet creates a new pattern set with the default injection patterns.
func NewPatternSet() *PatternSet {
	return &PatternSet{
		patterns: defaultPatterns(),
	}
}

// Patterns returns all patterns in the set.
func (ps *PatternSet) Patterns() []*Pattern {
	return ps.patterns
}

// contextMarkers are role and section markers whose presence in user
// input suggests an attempt to forge conversation structure.
var contextMarkers = []string{
	"system:", "user:", "assistant:", "###", "---",
	"instruction:", "context:", "prompt:",
}

// scopePatterns detect attempts to extract the system prompt or
// runtime configuration.
var scopePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)show\s+(me\s+)?(your|the)\s+(system|original|initial)\s+(prompt|instruction)`),
	regexp.MustCompile(`(?i)what\s+(were|are)\s+your\s+(original|initial|system)\s+(instructions?|prompts?)`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(prompt|instruction|system\s+message)`),
	regexp.MustCompile(`(?i)print\s+(your|the)\s+(configuration|settings|parameters)`),
}

// indirectPatterns detect instructions embedded in content that will be
// processed later (zero-click vectors in emails, documents, web pages).
var indirectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)when\s+(?:you|the\s+ai|assistant)\s+(?:read|see|process)\s+this`),
	regexp.MustCompile(`(?i)if\s+(?:you're|you\s+are)\s+an\s+ai`),
	regexp.MustCompile(`(?i)hidden\s+instruction`),
	regexp.MustCompile(`(?i)ignore\s+context\s+and`),
	regexp.MustCompile(`(?i)this\s+is\s+a\s+system\s+message`),
}

// defaultPatterns returns the built-in injection patterns.
// Severities reflect observed attack impact, not match reliability.
func defaultPatterns() []*Pattern {
	return []*Pattern{
		// Direct instruction override
		{
			Name:        "instruction_override",
			Regex:       regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?|commands?)`),
			Severity:    0.9,
			Description: "Attempts to override previous instructions",
		},
		{
			Name:        "new_instruction",
			Regex:       regexp.MustCompile(`(?i)(new|updated|revised)\s+(instruction|prompt|rule|command|task)s?:`),
			Severity:    0.85,
			Description: "Introduces new instructions",
		},

		// Role manipulation
		{
			Name:        "role_change",
			Regex:       regexp.MustCompile(`(?i)(you are now|act as|pretend to be|simulate|roleplay as)\s+(?:a\s+)?(\w+)`),
			Severity:    0.8,
			Description: "Attempts to change AI role",
		},
		{
			Name:        "system_impersonation",
			Regex:       regexp.MustCompile(`(?i)(system|admin|root|developer)\s*(mode|access|privileges?|rights?)`),
			Severity:    0.9,
			Description: "Attempts to gain system-level access",
		},

		// Context confusion
		{
			Name:        "delimiter_injection",
			Regex:       regexp.MustCompile("(---|===|###|\\*\\*\\*|```)\\s*(system|instruction|prompt|end)"),
			Severity:    0.75,
			Description: "Uses delimiters to confuse context",
		},
		{
			Name:        "context_switching",
			Regex:       regexp.MustCompile(`(?i)(end of|start of|begin|finish)\s+(context|instruction|prompt|conversation)`),
			Severity:    0.7,
			Description: "Attempts to switch context boundaries",
		},

		// Data exfiltration via injection
		{
			Name:        "exfiltration_command",
			Regex:       regexp.MustCompile(`(?i)(send|post|upload|transmit|email|forward)\s+(this|the|all|everything)\s+(to|at)`),
			Severity:    0.95,
			Description: "Attempts to exfiltrate data",
		},

		// Encoded/obfuscated attacks
		{
			Name:        "base64_suspicious",
			Regex:       regexp.MustCompile(`(?:base64|decode|atob|btoa)\s*\(.*\)`),
			Severity:    0.6,
			Description: "Suspicious encoding/decoding",
		},
		{
			Name:        "unicode_escape",
			Regex:       regexp.MustCompile(`\\u[0-9a-fA-F]{4}|\\x[0-9a-fA-F]{2}`),
			Severity:    0.5,
			Description: "Unicode escape sequences",
		},

		// Jailbreak patterns
		{
			Name:        "dan_mode",
			Regex:       regexp.MustCompile(`(?i)(dan|dude|developer)\s+mode`),
			Severity:    0.95,
			Description: "Known jailbreak attempt (DAN)",
		},
		{
			Name:        "unrestricted_mode",
			Regex:       regexp.MustCompile(`(?i)(unrestricted|unlimited|unfiltered|uncensored)\s+(mode|version|model)`),
			Severity:    0.9,
			Description: "Requests unrestricted mode",
		},

		// Indirect/zero-click patterns
		{
			Name:        "hidden_instruction",
			Regex:       regexp.MustCompile(`(?i)(if|when)\s+(you|the\s+ai|assistant)\s+(see|read|process|encounter)`),
			Severity:    0.7,
			Description: "Conditional instructions (zero-click vector)",
		},
		{
			Name:        "future_instruction",
			Regex:       regexp.MustCompile(`(?i)(in\s+future|from\s+now\s+on|always|whenever)\s+.*\s+(do|say|respond|answer)`),
			Severity:    0.75,
			Description: "Persistent instruction injection",
		},
	}
}
