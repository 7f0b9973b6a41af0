// Package mock provides a test double for the g2p.Transliterator interface.
//
// The mock resolves IPA strings from a fixed lookup table, which keeps
// phoneme-comparison tests deterministic without an espeak-ng server.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/accentor-app/accentor/pkg/provider/g2p"
)

// Transliterator is a mock implementation of g2p.Transliterator.
// The zero value reports every language as unsupported.
type Transliterator struct {
	mu sync.Mutex

	// IPA maps lower-cased input text to the IPA string to return.
	IPA map[string]string

	// Err, if non-nil, is returned from every ToIPA call.
	Err error

	// Calls records the (text, language) pairs passed to ToIPA, in order.
	Calls [][2]string
}

// Compile-time interface assertion.
var _ g2p.Transliterator = (*Transliterator)(nil)

// ToIPA implements g2p.Transliterator. Text missing from the IPA table maps
// to g2p.ErrLanguageUnsupported so that callers exercise their skip path.
func (t *Transliterator) ToIPA(ctx context.Context, text, language string) (string, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, [2]string{text, language})
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Err != nil {
		return "", t.Err
	}
	ipa, ok := t.IPA[strings.ToLower(text)]
	if !ok {
		return "", fmt.Errorf("%w: %q", g2p.ErrLanguageUnsupported, language)
	}
	return ipa, nil
}
