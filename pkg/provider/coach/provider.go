// Package coach defines the Provider interface for LLM pronunciation-coaching
// backends.
//
// A coaching provider wraps a large language model that listens to (or, for
// text-only models, reads the transcription of) a learner's recording and
// produces a qualitative critique. The model's reply is free-form text
// expected to contain one JSON object; parsing and validation of that object
// is deliberately NOT the provider's job — providers return the raw text and
// the coaching analyzer treats it as untrusted input.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: coaching calls are seconds-scale network I/O and are
// always wrapped in a deadline by the caller.
package coach

import "context"

// CritiqueRequest carries everything a coaching backend needs to critique one
// pronunciation attempt.
type CritiqueRequest struct {
	// Audio is the learner's recording, encoded in the container named by
	// Format. Audio-capable backends listen to it directly; text-only
	// backends ignore it and fall back to TranscribedText.
	Audio []byte

	// Format is the audio container format: "wav" or "mp3".
	Format string

	// Prompt is the fully-substituted coaching prompt (the target phrase is
	// already spliced in). Providers must send it verbatim.
	Prompt string

	// TranscribedText is what the recognizer heard. Text-only backends
	// critique from this instead of the audio.
	TranscribedText string
}

// Provider is the abstraction over any LLM coaching backend.
type Provider interface {
	// Critique submits one pronunciation attempt and returns the model's raw
	// free-form reply. The reply is untrusted: it usually contains a JSON
	// object, often wrapped in a fenced code block, and sometimes neither.
	//
	// Returns an error for transport failures, authentication failures, or
	// context cancellation. An unparseable reply is NOT an error at this
	// layer.
	Critique(ctx context.Context, req CritiqueRequest) (string, error)
}
