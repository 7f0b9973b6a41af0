// Package attempt defines the practice-attempt domain model and the storage
// contract for recording attempts, attaching coaching results, and computing
// progress aggregates.
package attempt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// AnalysisType states how far an attempt has been analyzed.
type AnalysisType string

const (
	// AnalysisSTTOnly means the attempt carries recognizer-based scoring only.
	AnalysisSTTOnly AnalysisType = "stt_only"

	// AnalysisSTTPlusCoaching means a coaching result has been attached.
	AnalysisSTTPlusCoaching AnalysisType = "stt_plus_coaching"
)

// Rhythm labels a coach may assign to an attempt.
const (
	RhythmSmooth   = "smooth"
	RhythmNatural  = "natural"
	RhythmChoppy   = "choppy"
	RhythmStaccato = "staccato"
	RhythmHesitant = "hesitant"
)

// ValidRhythm reports whether label is one of the known rhythm labels.
func ValidRhythm(label string) bool {
	switch label {
	case RhythmSmooth, RhythmNatural, RhythmChoppy, RhythmStaccato, RhythmHesitant:
		return true
	}
	return false
}

// PracticeAttempt is one recording event: the learner's audio, what the
// recognizer heard, the derived score, and optionally a coaching result.
//
// An attempt is created once on submission and mutated at most once, when
// coaching completes. It is never partially populated: either Coaching is nil
// and AnalysisType is stt_only, or both Coaching and CoachedAt are set and
// AnalysisType is stt_plus_coaching.
type PracticeAttempt struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"user_id"`
	ItemID string    `json:"item_id"`

	// Language is the BCP-47 code of the target phrase. Coaching and drill
	// lookups recover it from the stored attempt.
	Language string `json:"language"`

	// AudioRef locates the stored recording (an opaque storage key).
	AudioRef string `json:"audio_ref"`

	TargetText      string `json:"target_text"`
	TranscribedText string `json:"transcribed_text"`

	// Confidence is the recognizer's whole-utterance confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// WordScores holds one entry per transcribed word, in utterance order.
	// Empty when no speech was detected.
	WordScores []stt.WordScore `json:"word_scores"`

	// Score and Feedback are the scorer's verdict, persisted so history
	// reads do not have to re-run scoring.
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`

	// TargetIPA and TranscribedIPA are the phoneme transliterations used for
	// alignment. Empty when the language has no transliteration support.
	TargetIPA      string `json:"target_ipa"`
	TranscribedIPA string `json:"transcribed_ipa"`

	AnalysisType AnalysisType    `json:"analysis_type"`
	Coaching     *CoachingResult `json:"coaching,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	CoachedAt *time.Time `json:"coached_at,omitempty"`
}

// Validate checks the structural invariants of an attempt before recording.
// A joined error lists every violation found.
func (a *PracticeAttempt) Validate() error {
	var errs []error
	if a.ID == uuid.Nil {
		errs = append(errs, errors.New("id must be set"))
	}
	if a.UserID == "" {
		errs = append(errs, errors.New("user id must not be empty"))
	}
	if a.ItemID == "" {
		errs = append(errs, errors.New("item id must not be empty"))
	}
	if a.Language == "" {
		errs = append(errs, errors.New("language must not be empty"))
	}
	if a.TargetText == "" {
		errs = append(errs, errors.New("target text must not be empty"))
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		errs = append(errs, fmt.Errorf("confidence %v outside [0,1]", a.Confidence))
	}
	if got, want := len(a.WordScores), len(strings.Fields(a.TranscribedText)); got != want {
		errs = append(errs, fmt.Errorf("word scores (%d) do not cover transcribed words (%d)", got, want))
	}
	switch a.AnalysisType {
	case AnalysisSTTOnly:
		if a.Coaching != nil || a.CoachedAt != nil {
			errs = append(errs, errors.New("stt_only attempt must not carry coaching fields"))
		}
	case AnalysisSTTPlusCoaching:
		if a.Coaching == nil || a.CoachedAt == nil {
			errs = append(errs, errors.New("stt_plus_coaching attempt must carry coaching result and timestamp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown analysis type %q", a.AnalysisType))
	}
	return errors.Join(errs...)
}

// SoundIssue is one pronunciation problem reported by the coach, annotated by
// cross-validation against recognizer confidence.
type SoundIssue struct {
	// TargetSound and ProducedSound are IPA phonemes as reported by the coach.
	TargetSound   string `json:"target_sound"`
	ProducedSound string `json:"produced_sound"`

	// Excerpt is the span of the phrase where the issue occurred.
	Excerpt string `json:"excerpt"`

	// Suggestion explains how to fix the issue.
	Suggestion string `json:"suggestion"`

	// ConfidenceWarning marks an issue that only touches words the
	// recognizer heard with high confidence: a likely false positive.
	ConfidenceWarning bool `json:"confidence_warning,omitempty"`

	// CrossValidated marks an issue corroborated by a low-confidence word.
	CrossValidated bool `json:"cross_validated,omitempty"`
}

// CrossValidationSummary records how coaching flags were reconciled with
// recognizer confidence, so the UI can explain de-emphasized issues.
type CrossValidationSummary struct {
	// Suppressed explains each issue flagged as a likely false positive.
	Suppressed []string `json:"suppressed,omitempty"`

	// Confirmed explains each issue corroborated by recognizer uncertainty.
	Confirmed []string `json:"confirmed,omitempty"`

	// HighConfidenceWords and LowConfidenceWords are the two partitions of
	// the attempt's word scores (threshold 0.90, lower-cased).
	HighConfidenceWords []string `json:"high_confidence_words,omitempty"`
	LowConfidenceWords  []string `json:"low_confidence_words,omitempty"`
}

// CoachingResult is the parsed, cross-validated output of the LLM coach.
// Immutable once created.
type CoachingResult struct {
	// Clarity is the coach's overall clarity score, 0–100.
	Clarity float64 `json:"clarity"`

	// Rhythm is one of the Rhythm* labels.
	Rhythm string `json:"rhythm"`

	// SoundIssues lists pronunciation problems in the order reported.
	SoundIssues []SoundIssue `json:"sound_issues"`

	// StressNote is an optional remark on word stress.
	StressNote string `json:"stress_note,omitempty"`

	// Drill is one short practice exercise.
	Drill string `json:"drill"`

	// Encouragement is one positive sentence for the learner.
	Encouragement string `json:"encouragement"`

	CrossValidation CrossValidationSummary `json:"cross_validation"`
}

// ProgressEntry is one row of the per-item progress aggregate.
type ProgressEntry struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`

	// Attempts is the number of recorded attempts for this user/item pair.
	Attempts int `json:"attempts"`

	MeanConfidence float64 `json:"mean_confidence"`
	MaxConfidence  float64 `json:"max_confidence"`

	// LastAttempt is the timestamp of the most recent attempt.
	LastAttempt time.Time `json:"last_attempt"`
}

// ErrInvalidRating is returned by [Feedback.Validate] when the rating falls
// outside the 1–5 range. Callers match it with [errors.Is].
var ErrInvalidRating = errors.New("attempt: rating outside 1-5")

// Feedback is a learner's rating of an attempt's assessment quality.
type Feedback struct {
	AttemptID uuid.UUID `json:"attempt_id"`

	// Rating is a 1–5 star rating.
	Rating int `json:"rating"`

	// Comment is optional free text.
	Comment string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks feedback before persisting it.
func (f *Feedback) Validate() error {
	var errs []error
	if f.AttemptID == uuid.Nil {
		errs = append(errs, errors.New("attempt id must be set"))
	}
	if f.Rating < 1 || f.Rating > 5 {
		errs = append(errs, fmt.Errorf("rating %d: %w", f.Rating, ErrInvalidRating))
	}
	return errors.Join(errs...)
}
