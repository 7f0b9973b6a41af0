package scoring_test

import (
	"strings"
	"testing"

	"github.com/accentor-app/accentor/internal/scoring"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

func TestScoreExactMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		target      string
		transcribed string
		confidence  float64
		wantScore   float64
	}{
		{
			name:        "low confidence is floored at 0.85",
			target:      "pince",
			transcribed: "pince",
			confidence:  0.53,
			wantScore:   0.85,
		},
		{
			name:        "zero confidence is floored at 0.85",
			target:      "bonjour",
			transcribed: "bonjour",
			confidence:  0,
			wantScore:   0.85,
		},
		{
			name:        "high confidence passes through",
			target:      "bonjour",
			transcribed: "bonjour",
			confidence:  0.97,
			wantScore:   0.97,
		},
		{
			name:        "case and punctuation normalized",
			target:      "Comment ça va ?",
			transcribed: "comment ça va",
			confidence:  0.60,
			wantScore:   0.85,
		},
		{
			name:        "whitespace collapsed",
			target:      "  je   suis  ",
			transcribed: "je suis",
			confidence:  0.40,
			wantScore:   0.85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := scoring.Score(tt.target, tt.transcribed, tt.confidence, nil)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if !strings.Contains(got.Message, "Perfect") {
				t.Errorf("Message = %q, want an unambiguous success message", got.Message)
			}
		})
	}
}

func TestScorePartialMatch(t *testing.T) {
	t.Parallel()

	// 4 of 5 words match positionally (80%).
	got := scoring.Score(
		"je voudrais un café noir",
		"je voudrais un café blanc",
		0.55,
		nil,
	)
	if got.Score != 0.75 {
		t.Errorf("Score = %v, want 0.75", got.Score)
	}
	if !strings.Contains(got.Message, "4 of 5") {
		t.Errorf("Message = %q, want N-of-M match statement", got.Message)
	}
}

func TestScoreFallbackOnConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		confidence  float64
		wantMessage string
	}{
		{name: "close", confidence: 0.82, wantMessage: "Close"},
		{name: "try again", confidence: 0.45, wantMessage: "Keep practicing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := scoring.Score("bonjour tout le monde", "bon mon", tt.confidence, nil)
			if got.Score != tt.confidence {
				t.Errorf("Score = %v, want raw confidence %v", got.Score, tt.confidence)
			}
			if !strings.Contains(got.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want prefix %q", got.Message, tt.wantMessage)
			}
			if !strings.Contains(got.Message, "bon mon") {
				t.Errorf("Message = %q, want the heard text included", got.Message)
			}
		})
	}
}

func TestScoreWordStatuses(t *testing.T) {
	t.Parallel()

	words := []stt.WordScore{
		{Word: "je", Confidence: 0.95},
		{Word: "sui", Confidence: 0.65},
		{Word: "la", Confidence: 0.30},
	}

	t.Run("exact match marks every word correct", func(t *testing.T) {
		t.Parallel()

		got := scoring.Score("je sui la", "je sui la", 0.5, words)
		for i, w := range got.Words {
			if w.Status != scoring.StatusCorrect {
				t.Errorf("Words[%d].Status = %q, want %q", i, w.Status, scoring.StatusCorrect)
			}
		}
	})

	t.Run("unmatched words graded by confidence", func(t *testing.T) {
		t.Parallel()

		got := scoring.Score("tu es ici", "je sui la", 0.5, words)
		want := []string{scoring.StatusGood, scoring.StatusNeedsWork, scoring.StatusUnclear}
		if len(got.Words) != len(want) {
			t.Fatalf("len(Words) = %d, want %d", len(got.Words), len(want))
		}
		for i := range want {
			if got.Words[i].Status != want[i] {
				t.Errorf("Words[%d].Status = %q, want %q", i, got.Words[i].Status, want[i])
			}
		}
	})

	t.Run("positionally matched word stays correct despite low confidence", func(t *testing.T) {
		t.Parallel()

		got := scoring.Score("je es ici", "je sui la", 0.5, words)
		if got.Words[0].Status != scoring.StatusCorrect {
			t.Errorf("Words[0].Status = %q, want %q", got.Words[0].Status, scoring.StatusCorrect)
		}
	})
}

func TestScoreNeverContradicts(t *testing.T) {
	t.Parallel()

	// An exact match must never produce a sub-0.85 score, for any confidence.
	for _, conf := range []float64{0, 0.1, 0.3, 0.53, 0.7, 0.84, 0.85, 0.99, 1} {
		got := scoring.Score("pince", "pince", conf, nil)
		if got.Score < 0.85 {
			t.Errorf("confidence %v: Score = %v, want >= 0.85", conf, got.Score)
		}
	}
}
