package assess

import "errors"

// Sentinel errors returned by the assessment service. Handlers map these to
// specific user-facing responses; "no audio" and "no speech" must surface as
// their own signals rather than as a zero score.
var (
	// ErrNoAudio means the recording is too small to contain audible speech.
	// Nothing is transcribed or recorded.
	ErrNoAudio = errors.New("assess: recording too short to contain audio")

	// ErrNoSpeech means the recognizer heard nothing in the audio. The
	// submission is not scored and no attempt is recorded.
	ErrNoSpeech = errors.New("assess: no speech detected")

	// ErrSTTUnavailable means the speech recognizer failed. The submission
	// can be retried; no attempt is recorded.
	ErrSTTUnavailable = errors.New("assess: speech recognition unavailable")

	// ErrCoachingUnavailable means no coaching backend is configured.
	ErrCoachingUnavailable = errors.New("assess: coaching not configured")

	// ErrDrillsUnavailable means no embeddings backend is configured, so the
	// drill similarity library is disabled.
	ErrDrillsUnavailable = errors.New("assess: drill library not configured")

	// ErrInvalidSubmission means a required submission field is missing.
	ErrInvalidSubmission = errors.New("assess: invalid submission")
)
