// Package mock provides a test double for the coach.Provider interface.
//
// Use Provider in unit tests to feed controlled critique text without a live
// LLM backend, and to verify what prompt and audio were submitted. All fields
// are safe to set before calling any method; mutating them during a concurrent
// call is the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/accentor-app/accentor/pkg/provider/coach"
)

// Provider is a mock implementation of coach.Provider.
// The zero value returns an empty reply and a nil error.
type Provider struct {
	mu sync.Mutex

	// Reply is returned by every Critique call when Err is nil.
	Reply string

	// Err, if non-nil, is returned from Critique instead of Reply.
	Err error

	// Delay, if non-zero, makes Critique block until the delay elapses or the
	// context is cancelled. Useful for exercising timeout paths.
	Delay func(ctx context.Context) error

	// Calls records every Critique invocation in order.
	Calls []coach.CritiqueRequest
}

// Compile-time interface assertion.
var _ coach.Provider = (*Provider)(nil)

// Critique implements coach.Provider.
func (p *Provider) Critique(ctx context.Context, req coach.CritiqueRequest) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	p.mu.Unlock()

	if p.Delay != nil {
		if err := p.Delay(ctx); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Err != nil {
		return "", p.Err
	}
	return p.Reply, nil
}

// CallCount returns the number of Critique invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
