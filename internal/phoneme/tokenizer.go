// Package phoneme tokenizes IPA strings into phoneme sequences and aligns two
// sequences to pinpoint pronunciation differences.
//
// Tokenization is total: unknown characters fall through to single-character
// tokens rather than being rejected, since the input is derived from untrusted
// transcriptions. Alignment is a minimal-edit-distance diff over the token
// sequences, classifying every position as a match, substitution, deletion or
// insertion.
package phoneme

// Marks skipped during tokenization. These carry prosodic information
// (stress, syllable boundaries) but are not phonemes themselves.
var skipMarks = map[rune]bool{
	'ˈ':  true, // primary stress
	'ˌ':  true, // secondary stress
	'.':  true, // syllable boundary
	'|':  true, // minor prosodic break
	'‖':  true, // major prosodic break
	' ':  true,
	'\t': true,
	'\n': true,
	'\r': true,
}

// Combining and modifier marks that attach to the preceding symbol and must
// never start a token of their own.
var trailingMarks = map[rune]bool{
	'̃': true, // combining tilde (nasalization)
	'ː':      true, // length mark
	'ˑ':      true, // half-length mark
}

// Three-rune sequences recognised as single phonemes: affricates written with
// a tie bar (U+0361) between the stop and the fricative.
var trigraphs = map[string]bool{
	"t͡ʃ": true,
	"d͡ʒ": true,
	"t͡s": true,
	"d͡z": true,
}

// Two-rune sequences recognised as single phonemes: affricates written
// without a tie bar, and the common closing diphthongs.
var digraphs = map[string]bool{
	"tʃ": true,
	"dʒ": true,
	"ts": true,
	"dz": true,
	"pf": true,
	"aɪ": true,
	"aʊ": true,
	"ɔɪ": true,
	"eɪ": true,
	"oʊ": true,
	"əʊ": true,
	"ɪə": true,
	"eə": true,
	"ʊə": true,
	// Denasalized renditions of the French nasal vowels. Learners who miss
	// the nasalization produce vowel + n, which must align position-for-
	// position against the nasal vowel in the target.
	"ɛn": true,
	"ɑn": true,
	"ɔn": true,
	"œn": true,
}

// Tokenize splits an IPA string into an ordered phoneme sequence.
//
// At each position the longest known multi-character symbol wins: three-rune
// windows are tried before two-rune windows before single runes. A symbol
// immediately followed by a combining nasal tilde or a length mark is emitted
// as one token together with the mark. Stress and syllable-boundary marks are
// skipped. Unknown characters become single-character tokens, so Tokenize
// never fails.
//
// Tokenize("") returns an empty (non-nil) sequence.
func Tokenize(ipa string) []string {
	runes := []rune(ipa)
	tokens := make([]string, 0, len(runes))

	for i := 0; i < len(runes); {
		r := runes[i]
		if skipMarks[r] {
			i++
			continue
		}

		if i+3 <= len(runes) && trigraphs[string(runes[i:i+3])] {
			tokens = append(tokens, string(runes[i:i+3]))
			i += 3
			continue
		}

		if i+2 <= len(runes) {
			window := string(runes[i : i+2])
			if digraphs[window] || trailingMarks[runes[i+1]] {
				tokens = append(tokens, window)
				i += 2
				continue
			}
		}

		tokens = append(tokens, string(r))
		i++
	}
	return tokens
}
