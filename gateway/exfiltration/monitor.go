package exfiltration

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Recommendation is the enforcement decision for scanned output.
type Recommendation string

const (
	RecommendBlock  Recommendation = "BLOCK"
	RecommendRedact Recommendation = "REDACT"
	RecommendFlag   Recommendation = "FLAG"
	RecommendAllow  Recommendation = "ALLOW"
)

// SensitiveMatch is a sensitive data hit in the scanned output.
type SensitiveMatch struct {
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Severity    float64 `json:"severity"`
	MatchedText string  `json:"matched_text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// IndicatorMatch is an egress channel hit in the scanned output.
type IndicatorMatch struct {
	Name        string  `json:"name"`
	Method      Method  `json:"method"`
	Severity    float64 `json:"severity"`
	MatchedText string  `json:"matched_text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// URLAnalysis describes one URL found in the output.
type URLAnalysis struct {
	URL                 string `json:"url"`
	Domain              string `json:"domain"`
	IsTrusted           bool   `json:"is_trusted"`
	HasParameters       bool   `json:"has_parameters"`
	HasSuspiciousParams bool   `json:"has_suspicious_params"`
	RiskLevel           string `json:"risk_level"`
}

// Result is the outcome of an exfiltration scan.
type Result struct {
	HasExfiltrationRisk bool             `json:"has_exfiltration_risk"`
	RiskScore           float64          `json:"risk_score"`
	SensitiveData       []SensitiveMatch `json:"sensitive_data_found"`
	Indicators          []IndicatorMatch `json:"exfiltration_indicators"`
	URLs                []URLAnalysis    `json:"urls_found"`
	Recommendation      Recommendation   `json:"recommendation"`
	Duration            time.Duration    `json:"duration_ns"`
}

// Monitor scans model output for sensitive data paired with egress
// channels. Safe for concurrent use; the trusted domain set is guarded
// because it can be mutated at runtime.
type Monitor struct {
	sensitive  []*SensitivePattern
	indicators []*Indicator

	mu      sync.RWMutex
	trusted map[string]struct{}
}

// MonitorOption is a functional option for configuring Monitor.
type MonitorOption func(*Monitor)

// WithTrustedDomains replaces the default trusted domain set.
func WithTrustedDomains(domains ...string) MonitorOption {
	return func(m *Monitor) {
		m.trusted = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			m.trusted[strings.ToLower(d)] = struct{}{}
		}
	}
}

// WithSensitivePatterns replaces the default sensitive data catalogue.
func WithSensitivePatterns(patterns []*SensitivePattern) MonitorOption {
	return func(m *Monitor) {
		m.sensitive = patterns
	}
}

// NewMonitor creates a monitor with the default catalogues and the
// default trusted domains.
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		sensitive:  defaultSensitivePatterns(),
		indicators: defaultIndicators(),
		trusted: map[string]struct{}{
			"example.com": {},
			"trusted.org": {},
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// matchSnippet truncates matched text for safe inclusion in results.
func matchSnippet(s string, limit int) string {
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// ScanOutput scans model output for exfiltration risk.
func (m *Monitor) ScanOutput(ctx context.Context, output string) *Result {
	start := time.Now()

	result := &Result{
		SensitiveData:  []SensitiveMatch{},
		Indicators:     []IndicatorMatch{},
		URLs:           []URLAnalysis{},
		Recommendation: RecommendAllow,
	}

	select {
	case <-ctx.Done():
		result.Duration = time.Since(start)
		return result
	default:
	}

	for _, pattern := range m.sensitive {
		for _, loc := range pattern.Regex.FindAllStringIndex(output, -1) {
			result.SensitiveData = append(result.SensitiveData, SensitiveMatch{
				Type:        pattern.Name,
				Category:    pattern.Category,
				Severity:    pattern.Severity,
				MatchedText: matchSnippet(output[loc[0]:loc[1]], 50),
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}

	for _, indicator := range m.indicators {
		for _, loc := range indicator.Regex.FindAllStringIndex(output, -1) {
			result.Indicators = append(result.Indicators, IndicatorMatch{
				Name:        indicator.Name,
				Method:      indicator.Method,
				Severity:    indicator.Severity,
				MatchedText: matchSnippet(output[loc[0]:loc[1]], 100),
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}

	for _, u := range urlRegex.FindAllString(output, -1) {
		result.URLs = append(result.URLs, m.AnalyzeURL(u))
	}

	risk := 0.0
	for _, s := range result.SensitiveData {
		if s.Severity > risk {
			risk = s.Severity
		}
	}
	for _, i := range result.Indicators {
		if i.Severity > risk {
			risk = i.Severity
		}
	}

	// Sensitive data plus an egress channel is worse than either alone
	if len(result.SensitiveData) > 0 && len(result.Indicators) > 0 {
		risk = risk * 1.3
		if risk > 1.0 {
			risk = 1.0
		}
	}

	for _, u := range result.URLs {
		if !u.IsTrusted && u.HasSuspiciousParams && risk < 0.75 {
			risk = 0.75
		}
	}

	result.RiskScore = risk
	result.HasExfiltrationRisk = risk >= 0.6
	result.Recommendation = recommendationForRisk(risk)
	result.Duration = time.Since(start)
	return result
}

func recommendationForRisk(risk float64) Recommendation {
	switch {
	case risk >= 0.9:
		return RecommendBlock
	case risk >= 0.7:
		return RecommendRedact
	case risk >= 0.5:
		return RecommendFlag
	default:
		return RecommendAllow
	}
}

// AnalyzeURL classifies a single URL for exfiltration risk.
func (m *Monitor) AnalyzeURL(raw string) URLAnalysis {
	analysis := URLAnalysis{URL: raw, RiskLevel: "low"}

	parsed, err := url.Parse(raw)
	if err != nil {
		// Unparseable URLs are treated as untrusted without parameters
		return analysis
	}

	host := strings.ToLower(parsed.Hostname())
	analysis.Domain = parsed.Host
	analysis.IsTrusted = m.isTrusted(host)

	params := parsed.Query()
	analysis.HasParameters = len(params) > 0
	for name := range params {
		if _, ok := suspiciousParams[strings.ToLower(name)]; ok {
			analysis.HasSuspiciousParams = true
			break
		}
	}

	if !analysis.IsTrusted && analysis.HasSuspiciousParams {
		analysis.RiskLevel = "high"
	}
	return analysis
}

// isTrusted matches the host exactly or as a subdomain of a trusted
// domain. Substring tricks like "example.com.evil.net" do not qualify.
func (m *Monitor) isTrusted(host string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for domain := range m.trusted {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Redact replaces every sensitive data match with a typed redaction token.
func (m *Monitor) Redact(text string) string {
	redacted := text
	for _, pattern := range m.sensitive {
		token := "[" + strings.ToUpper(pattern.Name) + "_REDACTED]"
		redacted = pattern.Regex.ReplaceAllString(redacted, token)
	}
	return redacted
}

// AddTrustedDomain adds a domain to the trusted list.
func (m *Monitor) AddTrustedDomain(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[strings.ToLower(domain)] = struct{}{}
}

// RemoveTrustedDomain removes a domain from the trusted list.
func (m *Monitor) RemoveTrustedDomain(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trusted, strings.ToLower(domain))
}

// TrustedDomains returns a snapshot of the trusted domain list.
func (m *Monitor) TrustedDomains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	domains := make([]string, 0, len(m.trusted))
	for d := range m.trusted {
		domains = append(domains, d)
	}
	return domains
}
