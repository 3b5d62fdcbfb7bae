package pii

import (
	"context"
	"strings"
)

// ToxicityScore breaks a toxicity verdict into per-category scores.
type ToxicityScore struct {
	Toxicity       float64 `json:"toxicity"`
	SevereToxicity float64 `json:"severe_toxicity"`
	Obscene        float64 `json:"obscene"`
	Threat         float64 `json:"threat"`
	Insult         float64 `json:"insult"`
	IdentityAttack float64 `json:"identity_attack"`
	IsToxic        bool    `json:"is_toxic"`
}

// ToxicityClassifier scores text for abusive language.
type ToxicityClassifier interface {
	Score(ctx context.Context, text string) (*ToxicityScore, error)
}

// Word lists for the heuristic scorer. Deliberately small: this is a
// plug-point for a real classifier, not a moderation product.
var (
	toxicWords = []string{
		"hate", "stupid", "idiot", "moron", "dumb", "loser",
		"pathetic", "worthless", "disgusting", "trash",
	}
	severeWords = []string{
		"kill", "die", "murder", "attack", "destroy", "hurt",
	}
	threatWords = []string{
		"kill", "murder", "attack", "hurt", "destroy",
	}
	insultWords = []string{
		"stupid", "idiot", "moron", "dumb", "loser", "pathetic",
	}
)

// HeuristicToxicity is a word-count scorer used when no model backend
// is configured. Each toxic word adds 0.2 and each severe word 0.3,
// capped at 1.0.
type HeuristicToxicity struct {
	threshold float64
}

// NewHeuristicToxicity creates a heuristic scorer with the given
// is-toxic threshold (default 0.7 when out of range).
func NewHeuristicToxicity(threshold float64) *HeuristicToxicity {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	return &HeuristicToxicity{threshold: threshold}
}

// Score computes the heuristic toxicity breakdown.
func (h *HeuristicToxicity) Score(_ context.Context, text string) (*ToxicityScore, error) {
	lower := strings.ToLower(text)

	score := &ToxicityScore{}
	score.Toxicity = countHits(lower, toxicWords)*0.2 + countHits(lower, severeWords)*0.3
	if score.Toxicity > 1 {
		score.Toxicity = 1
	}

	score.SevereToxicity = clamp(countHits(lower, severeWords) * 0.3)
	score.Threat = clamp(countHits(lower, threatWords) * 0.3)
	score.Insult = clamp(countHits(lower, insultWords) * 0.25)
	score.Obscene = clamp(score.Toxicity * 0.6)
	score.IdentityAttack = clamp(score.Toxicity * 0.4)
	score.IsToxic = score.Toxicity >= h.threshold

	return score, nil
}

func countHits(text string, words []string) float64 {
	hits := 0.0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return hits
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
