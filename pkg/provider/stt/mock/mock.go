// Package mock provides a test double for the stt.Recognizer interface.
//
// Use Recognizer in unit tests to feed controlled transcripts without a live
// STT backend and to verify what audio and language were submitted. All fields
// are safe to set before calling any method; mutating them during a concurrent
// call is the caller's responsibility.
//
// Example:
//
//	r := &mock.Recognizer{
//	    Transcript: stt.Transcript{Text: "pince", Confidence: 0.53},
//	}
//	t, err := r.Transcribe(ctx, pcm, "fr")
package mock

import (
	"context"
	"sync"

	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// Call records a single invocation of Transcribe.
type Call struct {
	// Audio is the PCM payload passed to Transcribe.
	Audio []byte
	// Language is the language tag passed to Transcribe.
	Language string
}

// Recognizer is a mock implementation of stt.Recognizer.
// The zero value returns an empty Transcript and a nil error.
type Recognizer struct {
	mu sync.Mutex

	// Transcript is returned by every Transcribe call when Err is nil.
	Transcript stt.Transcript

	// Err, if non-nil, is returned from Transcribe instead of Transcript.
	Err error

	// Calls records every Transcribe invocation in order.
	Calls []Call
}

// Compile-time interface assertion.
var _ stt.Recognizer = (*Recognizer)(nil)

// Transcribe implements stt.Recognizer.
func (r *Recognizer) Transcribe(ctx context.Context, audio []byte, language string) (stt.Transcript, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, Call{Audio: audio, Language: language})
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	if r.Err != nil {
		return stt.Transcript{}, r.Err
	}
	return r.Transcript, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
