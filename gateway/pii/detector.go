package pii

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entity is one detected piece of PII.
type Entity struct {
	Type       Type    `json:"type"`
	Value      string  `json:"value"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`

	// Label is set for custom-pattern hits (the caller's pattern name)
	// and for NER hits whose raw label is worth preserving.
	Label string `json:"label,omitempty"`
}

// customPatternConfidence is assigned to user-supplied pattern hits;
// the gateway cannot vouch for a regex it did not write.
const customPatternConfidence = 0.75

// Detector finds PII entities with the built-in catalogue, optional
// caller-supplied patterns, and an optional NER labeler. Safe for
// concurrent use after construction.
type Detector struct {
	patterns []*Pattern
	labeler  EntityLabeler
}

// DetectorOption is a functional option for configuring Detector.
type DetectorOption func(*Detector)

// WithLabeler attaches an NER-style entity labeler. Without one, the
// detector is regex-only.
func WithLabeler(labeler EntityLabeler) DetectorOption {
	return func(d *Detector) {
		d.labeler = labeler
	}
}

// WithPatterns replaces the built-in catalogue.
func WithPatterns(patterns []*Pattern) DetectorOption {
	return func(d *Detector) {
		d.patterns = patterns
	}
}

// NewDetector creates a detector with the default catalogue.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{patterns: defaultPatterns()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect scans text with the built-in catalogue plus any custom
// patterns (name → regex source). Custom hits carry type "name" with
// the pattern name as label. Entities are returned in start order.
func (d *Detector) Detect(ctx context.Context, text string, customPatterns map[string]string) ([]Entity, error) {
	entities := []Entity{}

	for _, pattern := range d.patterns {
		for _, loc := range pattern.Regex.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			confidence := pattern.Confidence

			if pattern.Validator != nil {
				valid, c := pattern.Validator(value)
				if !valid {
					continue
				}
				confidence = c
			}

			entities = append(entities, Entity{
				Type:       pattern.Type,
				Value:      value,
				Start:      loc[0],
				End:        loc[1],
				Confidence: confidence,
			})
		}
	}

	for name, source := range customPatterns {
		re, err := regexp.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("custom pattern %q: %w", name, err)
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Type:       TypeName,
				Value:      text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: customPatternConfidence,
				Label:      name,
			})
		}
	}

	if d.labeler != nil {
		nerEntities, err := d.labeler.Label(ctx, text)
		if err == nil {
			entities = append(entities, nerEntities...)
		}
		// Labeler failure is non-fatal; the regex entities stand.
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})
	return entities, nil
}

// Redact splices a typed redaction token over every entity, working
// from the highest start offset down so earlier offsets stay valid.
func Redact(text string, entities []Entity) string {
	sorted := append([]Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})

	redacted := text
	for _, e := range sorted {
		if e.Start < 0 || e.End > len(redacted) || e.Start >= e.End {
			continue
		}
		redacted = redacted[:e.Start] + redactionToken(e) + redacted[e.End:]
	}
	return redacted
}

// redactionToken builds the replacement marker for an entity. Custom
// labels win over the type so callers recognize their own patterns.
func redactionToken(e Entity) string {
	name := string(e.Type)
	if e.Label != "" {
		name = e.Label
	}
	return "[" + strings.ToUpper(name) + "_REDACTED]"
}
