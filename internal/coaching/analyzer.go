// Package coaching invokes the LLM pronunciation coach, defensively parses
// its response, and cross-validates its findings against speech-recognizer
// confidence.
//
// The coach's output is untrusted: it is free-form text expected to contain
// one JSON object. Parsing validates into an explicit tagged structure; any
// missing or malformed field is a [ParseError] carrying the raw text for
// diagnosis, never loosely-typed data leaking downstream.
package coaching

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/internal/langpack"
	"github.com/accentor-app/accentor/pkg/provider/coach"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// ParseError reports an unusable coach response. Raw preserves the full
// response text so operators can inspect what the model actually said.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("coaching: unparseable coach response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Request carries everything one coaching invocation needs.
type Request struct {
	// Audio is the learner's recording; Format names its container ("wav").
	Audio  []byte
	Format string

	// TargetPhrase is substituted into the language's prompt template.
	TargetPhrase string

	// Language selects the prompt template and interference notes.
	Language string

	// TranscribedText is what the recognizer heard, passed to text-only
	// coach backends that cannot listen to the audio themselves.
	TranscribedText string

	// WordScores drive cross-validation of the coach's findings.
	WordScores []stt.WordScore
}

// Analyzer runs the coaching pipeline: prompt resolution, coach invocation,
// defensive parsing, cross-validation.
type Analyzer struct {
	coach  coach.Provider
	packs  *langpack.Registry
	logger *slog.Logger
}

// NewAnalyzer wires an Analyzer. packs may be empty; languages without a
// pack fall back to the generic prompt.
func NewAnalyzer(provider coach.Provider, packs *langpack.Registry, logger *slog.Logger) *Analyzer {
	return &Analyzer{coach: provider, packs: packs, logger: logger}
}

// Analyze invokes the coach and returns a validated, cross-validated result.
//
// Transport failures propagate from the provider; unusable responses return
// a [ParseError]. Both are recoverable: the caller's attempt keeps its
// recognizer-based score either way.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*attempt.CoachingResult, error) {
	prompt := langpack.GenericPrompt(req.TargetPhrase)
	if pack, ok := a.packs.Resolve(req.Language); ok {
		prompt = pack.Prompt(req.TargetPhrase)
	} else {
		a.logger.Info("no language pack, using generic coaching prompt", "language", req.Language)
	}

	raw, err := a.coach.Critique(ctx, coach.CritiqueRequest{
		Audio:           req.Audio,
		Format:          req.Format,
		Prompt:          prompt,
		TranscribedText: req.TranscribedText,
	})
	if err != nil {
		return nil, fmt.Errorf("coaching: invoke coach: %w", err)
	}

	result, err := parseResponse(raw)
	if err != nil {
		a.logger.Warn("coach response failed to parse",
			"language", req.Language, "error", err, "response_bytes", len(raw))
		return nil, err
	}

	CrossValidate(result, req.WordScores)
	return result, nil
}

// rawResponse is the wire shape expected inside the coach's response text.
// Pointer fields distinguish "absent" from zero values during validation.
type rawResponse struct {
	Clarity     *float64        `json:"clarity"`
	Rhythm      *string         `json:"rhythm"`
	SoundIssues []rawSoundIssue `json:"sound_issues"`
	StressNote  string          `json:"stress_note"`
	Drill       *string         `json:"drill"`
	Encourage   *string         `json:"encouragement"`
}

type rawSoundIssue struct {
	TargetSound   string `json:"target_sound"`
	ProducedSound string `json:"produced_sound"`
	Excerpt       string `json:"excerpt"`
	Suggestion    string `json:"suggestion"`
}

// parseResponse extracts and validates the JSON object in the coach's text.
func parseResponse(text string) (*attempt.CoachingResult, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, &ParseError{Raw: text, Err: err}
	}

	// Unknown keys are tolerated: models pad their output, and extra fields
	// are harmless as long as the required ones check out.
	var raw rawResponse
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ParseError{Raw: text, Err: fmt.Errorf("decode json: %w", err)}
	}

	if err := validateRaw(raw); err != nil {
		return nil, &ParseError{Raw: text, Err: err}
	}

	issues := make([]attempt.SoundIssue, len(raw.SoundIssues))
	for i, ri := range raw.SoundIssues {
		issues[i] = attempt.SoundIssue{
			TargetSound:   ri.TargetSound,
			ProducedSound: ri.ProducedSound,
			Excerpt:       ri.Excerpt,
			Suggestion:    ri.Suggestion,
		}
	}
	return &attempt.CoachingResult{
		Clarity:       *raw.Clarity,
		Rhythm:        *raw.Rhythm,
		SoundIssues:   issues,
		StressNote:    raw.StressNote,
		Drill:         *raw.Drill,
		Encouragement: *raw.Encourage,
	}, nil
}

func validateRaw(raw rawResponse) error {
	switch {
	case raw.Clarity == nil:
		return fmt.Errorf("missing field %q", "clarity")
	case *raw.Clarity < 0 || *raw.Clarity > 100:
		return fmt.Errorf("clarity %v outside [0,100]", *raw.Clarity)
	case raw.Rhythm == nil:
		return fmt.Errorf("missing field %q", "rhythm")
	case !attempt.ValidRhythm(*raw.Rhythm):
		return fmt.Errorf("unknown rhythm label %q", *raw.Rhythm)
	case raw.Drill == nil:
		return fmt.Errorf("missing field %q", "drill")
	case raw.Encourage == nil:
		return fmt.Errorf("missing field %q", "encouragement")
	}
	for i, issue := range raw.SoundIssues {
		if issue.TargetSound == "" || issue.Suggestion == "" {
			return fmt.Errorf("sound_issues[%d] missing target_sound or suggestion", i)
		}
	}
	return nil
}

// extractJSON strips fenced-code wrapping and returns the outermost JSON
// object in text. Models frequently wrap their JSON in ``` fences or pad it
// with prose; both are tolerated.
func extractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		// A language tag may follow the opening fence ("```json").
		if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
			trimmed = trimmed[i+1:]
		}
		if i := strings.LastIndex(trimmed, "```"); i >= 0 {
			trimmed = trimmed[:i]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("no json object in response")
	}
	return trimmed[start : end+1], nil
}
