package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/accentor-app/accentor/pkg/provider/coach"
	"github.com/accentor-app/accentor/pkg/provider/embeddings"
	"github.com/accentor-app/accentor/pkg/provider/g2p"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	stt        map[string]func(ProviderEntry) (stt.Recognizer, error)
	g2p        map[string]func(ProviderEntry) (g2p.Transliterator, error)
	coach      map[string]func(ProviderEntry) (coach.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:        make(map[string]func(ProviderEntry) (stt.Recognizer, error)),
		g2p:        make(map[string]func(ProviderEntry) (g2p.Transliterator, error)),
		coach:      make(map[string]func(ProviderEntry) (coach.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
	}
}

// RegisterSTT registers a speech recognizer factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Recognizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterG2P registers a grapheme-to-phoneme transliterator factory under name.
func (r *Registry) RegisterG2P(name string, factory func(ProviderEntry) (g2p.Transliterator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.g2p[name] = factory
}

// RegisterCoach registers a coaching provider factory under name.
func (r *Registry) RegisterCoach(name string, factory func(ProviderEntry) (coach.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coach[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateSTT instantiates a speech recognizer using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateG2P instantiates a transliterator using the factory registered under entry.Name.
func (r *Registry) CreateG2P(entry ProviderEntry) (g2p.Transliterator, error) {
	r.mu.RLock()
	factory, ok := r.g2p[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: g2p/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateCoach instantiates a coaching provider using the factory registered under entry.Name.
func (r *Registry) CreateCoach(entry ProviderEntry) (coach.Provider, error) {
	r.mu.RLock()
	factory, ok := r.coach[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: coach/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
