// Package mock provides a test double for the embeddings.Provider interface.
//
// The mock derives a deterministic pseudo-embedding from the input text, so
// similarity tests behave consistently without a live backend: identical texts
// embed identically.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/accentor-app/accentor/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Dims is the dimensionality of generated vectors. Zero defaults to 4.
	Dims int

	// Err, if non-nil, is returned from every Embed call.
	Err error

	// Calls records every text passed to Embed, in order.
	Calls []string
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider. The vector is a deterministic
// function of text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, text)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}

	dims := p.Dimensions()
	vec := make([]float32, dims)
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	for i := range vec {
		seed = seed*1664525 + 1013904223 // LCG step
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims <= 0 {
		return 4
	}
	return p.Dims
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock" }
