// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rampart/platform/gateway/exfiltration"
	"rampart/platform/gateway/injection"
	"rampart/platform/shared/logger"
)

// incidentThreshold is the risk score at which an inspection persists
// an incident row.
const incidentThreshold = 0.7

// jailbreakPhrases is the closed catalogue of known jailbreak tags
// checked on input and system prompt content in addition to the full
// injection pattern set.
var jailbreakPhrases = []string{
	"dan mode", "developer mode", "jailbreak", "unrestricted mode",
	"bypass restrictions", "without limitations", "ignore safety",
	"ignore ethics",
}

// InspectionResult is the combined verdict for one piece of content.
type InspectionResult struct {
	ID          string      `json:"id"`
	ContentHash string      `json:"content_hash"`
	ContextType ContextType `json:"context_type"`
	IsSafe      bool        `json:"is_safe"`
	RiskScore   float64     `json:"risk_score"`
	Threats     []Threat    `json:"threats_detected"`
	AnalyzedAt  time.Time   `json:"analyzed_at"`
	LatencyMs   float64     `json:"latency_ms"`

	// IncidentID is set when the inspection crossed the incident
	// threshold and a row was persisted.
	IncidentID string `json:"incident_id,omitempty"`
}

// Analyzer is the decision combiner: it selects detectors by context
// type, folds their verdicts into a threat list, and persists an
// incident when the risk crosses the threshold. Detectors are injected
// pre-built and warmed; the analyzer never constructs them lazily.
type Analyzer struct {
	injection injection.Detector
	exfil     *exfiltration.Monitor
	incidents *IncidentRepository
	log       *logger.Logger
}

// NewAnalyzer creates the combiner over pre-built detectors.
func NewAnalyzer(injectionDetector injection.Detector, exfil *exfiltration.Monitor, incidents *IncidentRepository) *Analyzer {
	return &Analyzer{
		injection: injectionDetector,
		exfil:     exfil,
		incidents: incidents,
		log:       logger.New("analyzer"),
	}
}

// contentHash is the first 16 hex characters of the content's SHA-256.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Analyze inspects content in its context and returns the combined
// verdict. userID owns any incident created.
func (a *Analyzer) Analyze(ctx context.Context, userID, content string, contextType ContextType) *InspectionResult {
	start := time.Now()

	result := &InspectionResult{
		ID:          uuid.NewString(),
		ContentHash: contentHash(content),
		ContextType: contextType,
		Threats:     []Threat{},
		AnalyzedAt:  start.UTC(),
	}

	switch contextType {
	case ContextOutput:
		a.scanOutput(ctx, content, result)
	default:
		a.scanInput(ctx, content, result)
	}

	risk := 0.0
	for _, t := range result.Threats {
		if t.Confidence > risk {
			risk = t.Confidence
		}
	}
	result.RiskScore = risk
	result.IsSafe = risk < 0.5
	result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0

	if risk >= incidentThreshold && a.incidents != nil {
		incident, err := a.incidents.Create(ctx, userID, result.Threats[0], risk, content)
		if err != nil {
			// Incident persistence must not fail the inspection
			a.log.Error("", result.ID, "failed to persist incident", map[string]interface{}{
				"error":      err.Error(),
				"risk_score": risk,
			})
		} else {
			result.IncidentID = incident.ID
		}
	}

	return result
}

// scanInput runs the injection detector plus the jailbreak catalogue.
func (a *Analyzer) scanInput(ctx context.Context, content string, result *InspectionResult) {
	verdict := a.injection.Detect(ctx, content)
	if verdict.IsInjection || verdict.RiskScore >= 0.3 {
		indicators := make([]string, 0, len(verdict.Patterns))
		for _, m := range verdict.Patterns {
			indicators = append(indicators, m.Name)
		}

		result.Threats = append(result.Threats, Threat{
			Type:              ThreatPromptInjection,
			Severity:          SeverityForConfidence(verdict.Confidence),
			Confidence:        verdict.Confidence,
			Description:       "Potential prompt injection attempt detected",
			Indicators:        indicators,
			RecommendedAction: string(verdict.Action),
		})
	}

	if phrases := matchJailbreakPhrases(content); len(phrases) > 0 {
		confidence := 0.9
		result.Threats = append(result.Threats, Threat{
			Type:              ThreatJailbreak,
			Severity:          SeverityForConfidence(confidence),
			Confidence:        confidence,
			Description:       "Known jailbreak phrasing detected",
			Indicators:        phrases,
			RecommendedAction: string(injection.ActionBlock),
		})
	}
}

// scanOutput runs the exfiltration monitor.
func (a *Analyzer) scanOutput(ctx context.Context, content string, result *InspectionResult) {
	scan := a.exfil.ScanOutput(ctx, content)
	if scan.RiskScore < 0.3 {
		return
	}

	indicators := make([]string, 0, len(scan.SensitiveData)+len(scan.Indicators))
	for _, s := range scan.SensitiveData {
		indicators = append(indicators, s.Type)
	}
	for _, i := range scan.Indicators {
		indicators = append(indicators, i.Name)
	}

	result.Threats = append(result.Threats, Threat{
		Type:              ThreatDataExfiltration,
		Severity:          SeverityForConfidence(scan.RiskScore),
		Confidence:        scan.RiskScore,
		Description:       "Potential data exfiltration in model output",
		Indicators:        indicators,
		RecommendedAction: strings.ToLower(string(scan.Recommendation)),
	})
}

// matchJailbreakPhrases returns the jailbreak catalogue entries present
// in the content.
func matchJailbreakPhrases(content string) []string {
	lower := strings.ToLower(content)
	var matched []string
	for _, phrase := range jailbreakPhrases {
		if strings.Contains(lower, phrase) {
			matched = append(matched, phrase)
		}
	}
	return matched
}

// AnalyzeBatch inspects multiple texts, preserving input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, userID string, contents []string, contextType ContextType) ([]*InspectionResult, error) {
	if len(contents) > injection.MaxBatchSize {
		return nil, errField(fmt.Sprintf("batch size %d exceeds maximum %d", len(contents), injection.MaxBatchSize))
	}

	results := make([]*InspectionResult, len(contents))
	for i, content := range contents {
		results[i] = a.Analyze(ctx, userID, content, contextType)
	}
	return results, nil
}

// ScanIndirect checks third-party content for embedded instructions
// targeting a downstream model.
func (a *Analyzer) ScanIndirect(ctx context.Context, text, source string) *injection.IndirectResult {
	type indirectScanner interface {
		ScanIndirect(ctx context.Context, text, source string) *injection.IndirectResult
	}

	if scanner, ok := a.injection.(indirectScanner); ok {
		return scanner.ScanIndirect(ctx, text, source)
	}

	// Detector without an indirect pass (ModeOff): report safe.
	return &injection.IndirectResult{Source: source, Recommendation: "SAFE", Patterns: []string{}}
}
