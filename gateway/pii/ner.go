package pii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EntityLabeler extracts PII entities with a model rather than
// patterns. Implementations must be safe for concurrent use.
type EntityLabeler interface {
	// Label returns the entities found in text, with Start/End byte
	// offsets into text.
	Label(ctx context.Context, text string) ([]Entity, error)
}

// canonicalLabels is the label list sent to the zero-shot model.
var canonicalLabels = []string{
	"person name", "email address", "phone number", "social security number",
	"credit card number", "ip address", "street address", "date of birth",
	"passport number", "driver license number", "bank account number",
	"medical record number",
}

// labelToType maps model labels into the closed type set. Unmapped
// labels default to name, the least specific type.
var labelToType = map[string]Type{
	"person name":            TypeName,
	"email address":          TypeEmail,
	"phone number":           TypePhone,
	"social security number": TypeSSN,
	"credit card number":     TypeCreditCard,
	"ip address":             TypeIPAddress,
	"street address":         TypeAddress,
	"date of birth":          TypeDateOfBirth,
	"passport number":        TypePassportNumber,
	"driver license number":  TypeDriverLicense,
	"bank account number":    TypeBankAccount,
	"medical record number":  TypeMedicalRecord,
}

// MapLabel converts a raw model label into the closed type set.
func MapLabel(label string) Type {
	if t, ok := labelToType[label]; ok {
		return t
	}
	return TypeName
}

// HTTPLabeler calls a zero-shot token classification endpoint
// (GLiNER-style): POST {"text": ..., "labels": [...]} returning a list
// of {text, label, start, end, score} spans.
type HTTPLabeler struct {
	endpoint string
	client   *http.Client
}

// NewHTTPLabeler creates a labeler client for the given endpoint.
func NewHTTPLabeler(endpoint string) *HTTPLabeler {
	return &HTTPLabeler{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type labelRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

type labelSpan struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Label calls the endpoint and maps the spans into entities.
func (l *HTTPLabeler) Label(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(labelRequest{Text: text, Labels: canonicalLabels})
	if err != nil {
		return nil, fmt.Errorf("failed to encode label request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build label request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("labeler request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("labeler returned status %d: %s", resp.StatusCode, snippet)
	}

	var spans []labelSpan
	if err := json.NewDecoder(resp.Body).Decode(&spans); err != nil {
		return nil, fmt.Errorf("failed to decode labeler response: %w", err)
	}

	entities := make([]Entity, 0, len(spans))
	for _, span := range spans {
		if span.Start < 0 || span.End > len(text) || span.Start >= span.End {
			continue
		}
		entities = append(entities, Entity{
			Type:       MapLabel(span.Label),
			Value:      span.Text,
			Start:      span.Start,
			End:        span.End,
			Confidence: span.Score,
			Label:      span.Label,
		})
	}
	return entities, nil
}
