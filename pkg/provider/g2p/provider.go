// Package g2p defines the Transliterator interface for grapheme-to-phoneme
// backends.
//
// A transliterator converts written text into an IPA (International Phonetic
// Alphabet) string so that a target phrase and a transcription can be compared
// at the sound level rather than the spelling level. Accentor does not
// implement transliteration rules itself — it consumes the output of an
// external engine such as espeak-ng.
//
// Implementations must be safe for concurrent use.
package g2p

import (
	"context"
	"errors"
)

// ErrLanguageUnsupported is returned by Transliterate when the backend has no
// phoneme rules for the requested language. Callers should treat this as a
// soft condition: phoneme-level comparison is skipped while word-level scoring
// proceeds unaffected.
var ErrLanguageUnsupported = errors.New("g2p: language not supported")

// Transliterator is the abstraction over any grapheme-to-IPA backend.
type Transliterator interface {
	// ToIPA converts text into an IPA string for the given BCP-47 language tag.
	// Returns ErrLanguageUnsupported (possibly wrapped) when the language has
	// no transliteration rules, and other errors for transport failures.
	ToIPA(ctx context.Context, text, language string) (string, error)
}
