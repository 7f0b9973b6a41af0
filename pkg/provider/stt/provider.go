// Package stt defines the Recognizer interface for Speech-to-Text backends.
//
// An STT recognizer wraps a transcription engine (a local whisper.cpp model,
// or a remote recognition API) and exposes a uniform batch interface: one
// complete recording in, one Transcript out. Pronunciation attempts are short
// (a single flashcard phrase), so batch recognition is the natural shape —
// there is no streaming session to manage.
//
// Implementations must be safe for concurrent use. Multiple attempts may be
// transcribed simultaneously (one per in-flight submission).
package stt

import "context"

// Recognizer is the abstraction over any STT backend.
//
// Transcribe converts a complete recording into a Transcript. Silent or
// unintelligible audio is not an error: implementations return a Transcript
// with an empty Text so that callers can distinguish "nothing was said" from
// "the recognizer is broken".
type Recognizer interface {
	// Transcribe recognizes speech in audio, which must be 16-bit signed
	// little-endian PCM mono at 16 kHz. language is a BCP-47 tag (e.g., "fr",
	// "en-US"); an empty string lets the backend auto-detect, if supported.
	//
	// Returns an error only for transport or engine failures. Context
	// cancellation must be respected; recognition of a few seconds of audio
	// may still take seconds on slow backends.
	Transcribe(ctx context.Context, audio []byte, language string) (Transcript, error)
}
