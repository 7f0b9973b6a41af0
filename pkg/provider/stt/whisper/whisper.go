// Package whisper provides a local whisper.cpp-backed STT recognizer using the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The ggml model is loaded once at construction and shared across all
// concurrent Transcribe calls; each call creates its own whisper context, so
// recognition requests do not interfere with each other.
//
// Per-word confidences are derived from whisper's token probabilities: tokens
// are grouped into words at whitespace boundaries and each word's confidence
// is the mean probability of its tokens. The transcript-level confidence is
// the mean of the word confidences.
//
// Usage:
//
//	r, err := whisper.New("/models/ggml-base.bin", whisper.WithLanguage("fr"))
//	t, err := r.Transcribe(ctx, pcm, "fr")
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// Compile-time assertion that Recognizer satisfies stt.Recognizer.
var _ stt.Recognizer = (*Recognizer)(nil)

// defaultLanguage is used when neither the Transcribe call nor the
// constructor options specify a language.
const defaultLanguage = "en"

// Recognizer implements stt.Recognizer backed by a local whisper.cpp model.
type Recognizer struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the default BCP-47 language code for transcription
// (e.g., "en", "de", "fr"), used when Transcribe is called with an empty
// language. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// New creates a Recognizer that loads the whisper.cpp model from the given
// file path. The model is loaded once and shared across all concurrent
// Transcribe calls. The caller must call Close when the recognizer is no
// longer needed.
func New(modelPath string, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	r := &Recognizer{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the whisper model. Must be called when the recognizer is no
// longer needed.
func (r *Recognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// Transcribe implements stt.Recognizer. audio must be 16-bit signed
// little-endian PCM mono at 16 kHz.
//
// Each call creates a new whisper.cpp context. Contexts are NOT thread-safe,
// but the underlying model can be shared across goroutines, so concurrent
// calls are fine.
func (r *Recognizer) Transcribe(ctx context.Context, audio []byte, language string) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := language
	if lang == "" {
		lang = r.language
	}
	// whisper.cpp wants a bare ISO 639-1 code, not a full BCP-47 tag.
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}

	samples := pcmToFloat32(audio)
	if len(samples) == 0 {
		return stt.Transcript{}, nil
	}

	wctx, err := r.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	wctx.SetTokenTimestamps(true)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts []string
		words []stt.WordScore
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
		words = append(words, wordsFromTokens(segment.Tokens)...)
	}

	t := stt.Transcript{
		Text:  strings.Join(parts, " "),
		Words: words,
	}
	t.Confidence = meanConfidence(words)
	return t, nil
}

// wordsFromTokens groups whisper subword tokens into words at whitespace
// boundaries. A token whose text begins with a space starts a new word. The
// word confidence is the mean probability of its constituent tokens.
// Special marker tokens (e.g., "[_BEG_]") are skipped.
func wordsFromTokens(tokens []whisperlib.Token) []stt.WordScore {
	var (
		words   []stt.WordScore
		current strings.Builder
		probSum float64
		nTokens int
	)

	flush := func() {
		word := strings.TrimSpace(current.String())
		if word != "" && nTokens > 0 {
			words = append(words, stt.WordScore{
				Word:       word,
				Confidence: probSum / float64(nTokens),
			})
		}
		current.Reset()
		probSum = 0
		nTokens = 0
	}

	for _, tok := range tokens {
		if strings.HasPrefix(tok.Text, "[") && strings.HasSuffix(tok.Text, "]") {
			continue
		}
		if strings.HasPrefix(tok.Text, " ") && current.Len() > 0 {
			flush()
		}
		current.WriteString(tok.Text)
		probSum += float64(tok.P)
		nTokens++
	}
	flush()

	return words
}

// meanConfidence returns the mean word confidence, or 0 for an empty list.
func meanConfidence(words []stt.WordScore) float64 {
	if len(words) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// pcmToFloat32 converts 16-bit signed little-endian PCM mono bytes to
// normalized float32 samples in [-1, 1]. A trailing odd byte is dropped.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}
