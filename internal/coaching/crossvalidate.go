package coaching

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// highConfidenceThreshold partitions recognizer word scores: words above it
// were heard clearly, words at or below it were uncertain.
const highConfidenceThreshold = 0.90

// fuzzyMatchThreshold is the Jaro-Winkler similarity above which an excerpt
// token counts as a match for a scored word despite spelling drift.
const fuzzyMatchThreshold = 0.90

// CrossValidate reconciles the coach's sound issues with recognizer
// confidence, in place.
//
// Word scores are partitioned (lower-cased) into high-confidence (>0.90) and
// low-confidence (≤0.90) sets. An issue whose excerpt overlaps a
// low-confidence word is marked cross-validated: the recognizer's own
// uncertainty corroborates it. An issue overlapping only high-confidence
// words is marked with a confidence warning: the recognizer heard those words
// clearly, so the issue is a likely false positive. An issue overlapping
// neither set is left unmarked. Every issue gets at most one flag, and no
// issue is ever removed; annotation lets the UI de-emphasize doubtful flags
// without losing information.
func CrossValidate(result *attempt.CoachingResult, words []stt.WordScore) {
	high, low := partition(words)
	summary := &result.CrossValidation
	summary.HighConfidenceWords = high
	summary.LowConfidenceWords = low

	for i := range result.SoundIssues {
		issue := &result.SoundIssues[i]
		excerpt := strings.ToLower(issue.Excerpt)

		// The low-confidence set is consulted first: an issue touching an
		// uncertain word stays corroborated even if a clearly-heard word
		// also appears in the excerpt.
		if word, ok := overlaps(excerpt, low); ok {
			issue.CrossValidated = true
			summary.Confirmed = append(summary.Confirmed, fmt.Sprintf(
				"issue %q→%q in %q confirmed: recognizer was also unsure of %q",
				issue.TargetSound, issue.ProducedSound, issue.Excerpt, word))
			continue
		}
		if word, ok := overlaps(excerpt, high); ok {
			issue.ConfidenceWarning = true
			summary.Suppressed = append(summary.Suppressed, fmt.Sprintf(
				"issue %q→%q in %q may be a false positive: recognizer heard %q clearly",
				issue.TargetSound, issue.ProducedSound, issue.Excerpt, word))
		}
	}
}

// partition splits word scores into high- and low-confidence word lists,
// lower-cased. The split is total and disjoint.
func partition(words []stt.WordScore) (high, low []string) {
	for _, w := range words {
		word := strings.ToLower(strings.TrimSpace(w.Word))
		if word == "" {
			continue
		}
		if w.Confidence > highConfidenceThreshold {
			high = append(high, word)
		} else {
			low = append(low, word)
		}
	}
	return high, low
}

// overlaps reports whether any word of the set occurs in the excerpt.
// Substring containment is tried first; a Jaro-Winkler comparison against
// each excerpt token catches small spelling drift between the coach's
// excerpt and the recognizer's transcription.
func overlaps(excerpt string, words []string) (string, bool) {
	for _, word := range words {
		if strings.Contains(excerpt, word) {
			return word, true
		}
	}
	for _, token := range strings.Fields(excerpt) {
		token = strings.Trim(token, `.,!?;:"'`)
		for _, word := range words {
			if matchr.JaroWinkler(token, word, false) >= fuzzyMatchThreshold {
				return word, true
			}
		}
	}
	return "", false
}
