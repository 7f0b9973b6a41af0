package resilience

import (
	"context"

	"github.com/accentor-app/accentor/pkg/provider/coach"
)

// CoachFallback implements [coach.Provider] with automatic failover across
// multiple coaching backends, typically an audio-capable primary and a
// cheaper text-only fallback. Each backend has its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is
// tried.
type CoachFallback struct {
	group *FallbackGroup[coach.Provider]
}

// Compile-time interface assertion.
var _ coach.Provider = (*CoachFallback)(nil)

// NewCoachFallback creates a [CoachFallback] with primary as the preferred
// backend.
func NewCoachFallback(primary coach.Provider, primaryName string, cfg FallbackConfig) *CoachFallback {
	return &CoachFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional coaching provider as a fallback.
func (f *CoachFallback) AddFallback(name string, provider coach.Provider) {
	f.group.AddFallback(name, provider)
}

// Critique sends the request to the first healthy backend and returns its raw
// response text. A parse failure downstream does not count against a backend;
// only transport-level errors trip its breaker.
func (f *CoachFallback) Critique(ctx context.Context, req coach.CritiqueRequest) (string, error) {
	return ExecuteWithResult(f.group, func(p coach.Provider) (string, error) {
		return p.Critique(ctx, req)
	})
}
