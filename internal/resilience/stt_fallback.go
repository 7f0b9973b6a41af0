package resilience

import (
	"context"

	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// STTFallback implements [stt.Recognizer] with automatic failover across
// multiple STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Recognizer]
}

// Compile-time interface assertion.
var _ stt.Recognizer = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Recognizer, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognizer as a fallback.
func (f *STTFallback) AddFallback(name string, recognizer stt.Recognizer) {
	f.group.AddFallback(name, recognizer)
}

// Transcribe runs the recording against the first healthy backend. An empty
// transcript is a valid result (silence), not a reason to fail over.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, language string) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(r stt.Recognizer) (stt.Transcript, error) {
		return r.Transcribe(ctx, audio, language)
	})
}
