// Package scoring turns a speech-recognizer transcription into one score and
// one feedback message that never contradict each other.
//
// Recognizer confidence measures how sure the recognizer is of its own
// transcription, not how well the learner pronounced the phrase. A correct
// transcription is therefore conclusive evidence of success, even when the
// recognizer reports low confidence. The priority-ordered rules below encode
// that: exact match wins outright, positional word overlap earns partial
// credit, and raw confidence is only consulted as a last resort.
package scoring

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// Word status labels, from best to worst.
const (
	StatusCorrect   = "correct"
	StatusGood      = "good"
	StatusNeedsWork = "needs_work"
	StatusUnclear   = "unclear"
)

// Score floors applied by the match rules.
const (
	exactMatchFloor   = 0.85
	partialMatchFloor = 0.75
	closeThreshold    = 0.70
)

// WordAssessment is the per-word verdict attached to a scoring result.
type WordAssessment struct {
	// Word is the transcribed word, as heard by the recognizer.
	Word string `json:"word"`

	// Confidence is the recognizer's certainty for this word, in [0,1].
	Confidence float64 `json:"confidence"`

	// Status is one of the Status* labels.
	Status string `json:"status"`
}

// Result is a single, internally consistent verdict on one attempt.
type Result struct {
	// Score is the overall pronunciation score in [0,1].
	Score float64 `json:"score"`

	// Message is user-facing feedback matched to Score.
	Message string `json:"message"`

	// Words holds one assessment per transcribed word, in order.
	Words []WordAssessment `json:"words"`
}

// Score evaluates a transcription against the target text.
//
// targetText is the phrase the learner was asked to say, transcribedText is
// what the recognizer heard, overall is the recognizer's whole-utterance
// confidence and words its per-word confidences.
//
// Empty transcriptions must be intercepted by the caller as a "no speech"
// condition before scoring; Score assumes a non-empty transcription.
func Score(targetText, transcribedText string, overall float64, words []stt.WordScore) Result {
	targetWords := normalizeWords(targetText)
	heardWords := normalizeWords(transcribedText)

	switch {
	case wordsEqual(targetWords, heardWords):
		return Result{
			Score:   max(overall, exactMatchFloor),
			Message: "Perfect! You said it exactly right.",
			Words:   assessWords(words, true, nil),
		}

	case len(targetWords) == len(heardWords):
		matched := positionalMatches(targetWords, heardWords)
		if float64(matched) >= 0.8*float64(len(targetWords)) {
			return Result{
				Score: max(overall, partialMatchFloor),
				Message: fmt.Sprintf("Almost there! %d of %d words matched.",
					matched, len(targetWords)),
				Words: assessWords(words, false, matchedSet(targetWords, heardWords)),
			}
		}
	}

	msg := fmt.Sprintf("Keep practicing. I heard: %q", transcribedText)
	if overall >= closeThreshold {
		msg = fmt.Sprintf("Close! I heard: %q", transcribedText)
	}
	return Result{
		Score:   overall,
		Message: msg,
		Words:   assessWords(words, false, matchedSet(targetWords, heardWords)),
	}
}

// normalizeWords lowercases, strips punctuation and splits on whitespace.
func normalizeWords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Fields(cleaned)
}

// NormalizeWord applies the scorer's normalization to a single word, for
// callers that need to compare transcribed words outside a full Score call.
func NormalizeWord(word string) string {
	fields := normalizeWords(word)
	return strings.Join(fields, " ")
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func positionalMatches(target, heard []string) int {
	n := 0
	for i := range target {
		if target[i] == heard[i] {
			n++
		}
	}
	return n
}

// matchedSet returns the normalized heard words that appear at a matching
// position in the target. Used to grant "correct" status per word even when
// the utterance as a whole did not pass a match rule.
func matchedSet(target, heard []string) map[string]bool {
	set := make(map[string]bool)
	for i := 0; i < len(target) && i < len(heard); i++ {
		if target[i] == heard[i] {
			set[heard[i]] = true
		}
	}
	return set
}

// assessWords assigns a status label to each transcribed word. allCorrect
// marks every word correct regardless of confidence; otherwise words found in
// matched are correct and the rest are graded by confidence alone.
func assessWords(words []stt.WordScore, allCorrect bool, matched map[string]bool) []WordAssessment {
	out := make([]WordAssessment, len(words))
	for i, w := range words {
		status := confidenceStatus(w.Confidence)
		if allCorrect || matched[NormalizeWord(w.Word)] {
			status = StatusCorrect
		}
		out[i] = WordAssessment{Word: w.Word, Confidence: w.Confidence, Status: status}
	}
	return out
}

func confidenceStatus(confidence float64) string {
	switch {
	case confidence >= 0.70:
		return StatusGood
	case confidence >= 0.50:
		return StatusNeedsWork
	default:
		return StatusUnclear
	}
}
