package stt

// Transcript represents a batch speech-to-text result from a Recognizer.
type Transcript struct {
	// Text is the transcribed speech content. Empty when the recording
	// contained no recognizable speech.
	Text string

	// Confidence is the overall recognition confidence (0.0–1.0). It measures
	// how certain the recognizer is about its transcription — not how well the
	// speaker pronounced anything. May be zero if the backend does not report
	// confidence.
	Confidence float64

	// Words contains per-word detail in spoken order. May be nil for backends
	// that don't support word-level output.
	Words []WordScore
}

// WordScore holds a recognizer's per-word certainty that it transcribed the
// word correctly.
type WordScore struct {
	Word       string
	Confidence float64
}
