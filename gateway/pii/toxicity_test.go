package pii

import (
	"context"
	"testing"
)

func TestHeuristicToxicityClean(t *testing.T) {
	scorer := NewHeuristicToxicity(0.7)

	score, err := scorer.Score(context.Background(), "Thanks for the quick turnaround on the report.")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Toxicity != 0 {
		t.Errorf("Toxicity = %.2f, want 0", score.Toxicity)
	}
	if score.IsToxic {
		t.Error("clean text marked toxic")
	}
}

func TestHeuristicToxicityInsults(t *testing.T) {
	scorer := NewHeuristicToxicity(0.7)

	// Four toxic-list words at 0.2 each.
	score, err := scorer.Score(context.Background(), "you stupid idiot, what a dumb loser")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Toxicity < 0.7 {
		t.Errorf("Toxicity = %.2f, want >= 0.7", score.Toxicity)
	}
	if !score.IsToxic {
		t.Error("insult string not marked toxic")
	}
	if score.Insult == 0 {
		t.Error("Insult category not scored")
	}
	if score.Threat != 0 {
		t.Errorf("Threat = %.2f, want 0 for non-violent text", score.Threat)
	}
}

func TestHeuristicToxicityThreats(t *testing.T) {
	scorer := NewHeuristicToxicity(0.7)

	score, err := scorer.Score(context.Background(), "i hate you, i will kill you and destroy everything")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Threat == 0 {
		t.Error("Threat category not scored")
	}
	if score.SevereToxicity == 0 {
		t.Error("SevereToxicity not scored")
	}
	if !score.IsToxic {
		t.Error("violent text not marked toxic")
	}
}

func TestHeuristicToxicityCapped(t *testing.T) {
	scorer := NewHeuristicToxicity(0.7)

	score, err := scorer.Score(context.Background(),
		"hate stupid idiot moron dumb loser pathetic worthless kill murder attack destroy")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.Toxicity != 1.0 {
		t.Errorf("Toxicity = %.2f, want capped at 1.0", score.Toxicity)
	}
	for name, v := range map[string]float64{
		"SevereToxicity": score.SevereToxicity,
		"Threat":         score.Threat,
		"Insult":         score.Insult,
		"Obscene":        score.Obscene,
		"IdentityAttack": score.IdentityAttack,
	} {
		if v > 1.0 {
			t.Errorf("%s = %.2f, exceeds 1.0", name, v)
		}
	}
}

func TestHeuristicToxicityThreshold(t *testing.T) {
	// Two toxic words score 0.4: toxic at a 0.3 threshold, clean at 0.7.
	text := "what a stupid and dumb idea"

	strict := NewHeuristicToxicity(0.3)
	score, _ := strict.Score(context.Background(), text)
	if !score.IsToxic {
		t.Errorf("Toxicity %.2f not flagged at threshold 0.3", score.Toxicity)
	}

	lenient := NewHeuristicToxicity(0.7)
	score, _ = lenient.Score(context.Background(), text)
	if score.IsToxic {
		t.Errorf("Toxicity %.2f flagged at threshold 0.7", score.Toxicity)
	}
}

func TestHeuristicToxicityDefaultThreshold(t *testing.T) {
	for _, bad := range []float64{0, -1, 1.5} {
		scorer := NewHeuristicToxicity(bad)
		if scorer.threshold != 0.7 {
			t.Errorf("threshold(%v) = %.2f, want default 0.7", bad, scorer.threshold)
		}
	}
}
