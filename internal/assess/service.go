// Package assess orchestrates the pronunciation assessment pipeline: audio
// validation, transcription, scoring, phoneme alignment, attempt recording,
// and the optional coaching stage.
//
// The pipeline has two stages. Submission (SubmitAttempt) is mandatory and
// synchronous: it always produces either a scored attempt or a typed error.
// Coaching (RequestCoaching) is optional, separately timed, and strictly
// additive: its failures never invalidate an already recorded attempt.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/internal/coaching"
	"github.com/accentor-app/accentor/internal/drill"
	"github.com/accentor-app/accentor/internal/langpack"
	"github.com/accentor-app/accentor/internal/observe"
	"github.com/accentor-app/accentor/internal/phoneme"
	"github.com/accentor-app/accentor/internal/scoring"
	"github.com/accentor-app/accentor/pkg/provider/g2p"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// BlobStore persists submitted recordings. Save returns an opaque reference
// stored on the attempt row; Load reads it back for the coaching stage.
type BlobStore interface {
	Save(attemptID uuid.UUID, format string, data []byte) (string, error)
	Load(ref string) ([]byte, error)
}

// Config wires the service's collaborators and tuning values. Recognizer and
// Store are required; every other collaborator degrades gracefully when nil.
type Config struct {
	Recognizer     stt.Recognizer
	Transliterator g2p.Transliterator // nil skips phoneme comparison
	Analyzer       *coaching.Analyzer // nil rejects coaching requests
	Store          attempt.Store
	Drills         *drill.Library    // nil disables drill lookups
	Packs          *langpack.Registry
	Audio          BlobStore // nil skips recording persistence
	Metrics        *observe.Metrics
	Logger         *slog.Logger

	// MinAudioBytes is the smallest recording treated as containing audio.
	MinAudioBytes int

	// CoachingTimeout bounds one coaching round trip.
	CoachingTimeout time.Duration

	// HistoryPageSize is the default page size for GetHistory.
	HistoryPageSize int

	// DrillTopK is the number of similar drills returned per lookup.
	DrillTopK int
}

// Service implements the assessment surface: submit, coach, progress,
// history, feedback, drills. Safe for concurrent use.
type Service struct {
	stt      stt.Recognizer
	g2p      g2p.Transliterator
	analyzer *coaching.Analyzer
	store    attempt.Store
	drills   *drill.Library
	packs    *langpack.Registry
	audio    BlobStore
	metrics  *observe.Metrics
	logger   *slog.Logger

	// Tunables, hot-reloadable via Retune. coachingTimeout holds nanoseconds.
	minAudioBytes   atomic.Int64
	coachingTimeout atomic.Int64
	historyPageSize atomic.Int64
	drillTopK       atomic.Int64

	// coachingCalls collapses concurrent coaching requests for one attempt
	// into a single collaborator invocation.
	coachingCalls singleflight.Group
}

// New validates the config and returns a ready service.
func New(cfg Config) (*Service, error) {
	if cfg.Recognizer == nil {
		return nil, errors.New("assess: a speech recognizer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("assess: an attempt store is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinAudioBytes <= 0 {
		return nil, fmt.Errorf("assess: min audio bytes %d must be positive", cfg.MinAudioBytes)
	}
	if cfg.CoachingTimeout <= 0 {
		return nil, fmt.Errorf("assess: coaching timeout %v must be positive", cfg.CoachingTimeout)
	}

	s := &Service{
		stt:      cfg.Recognizer,
		g2p:      cfg.Transliterator,
		analyzer: cfg.Analyzer,
		store:    cfg.Store,
		drills:   cfg.Drills,
		packs:    cfg.Packs,
		audio:    cfg.Audio,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	s.Retune(cfg.MinAudioBytes, cfg.CoachingTimeout, cfg.HistoryPageSize, cfg.DrillTopK)
	return s, nil
}

// Retune applies new pipeline tuning values, typically from a config hot
// reload. Zero or negative values keep the current setting. Safe to call
// while requests are in flight.
func (s *Service) Retune(minAudioBytes int, coachingTimeout time.Duration, historyPageSize, drillTopK int) {
	if minAudioBytes > 0 {
		s.minAudioBytes.Store(int64(minAudioBytes))
	}
	if coachingTimeout > 0 {
		s.coachingTimeout.Store(int64(coachingTimeout))
	}
	if historyPageSize > 0 {
		s.historyPageSize.Store(int64(historyPageSize))
	}
	if drillTopK > 0 {
		s.drillTopK.Store(int64(drillTopK))
	}
}

// Submission is one learner recording of one target phrase.
type Submission struct {
	Audio    []byte
	Format   string // audio container name, e.g. "wav"
	Target   string // the phrase the learner was asked to say
	Language string // BCP-47 code of the target phrase
	UserID   string
	ItemID   string
}

func (s Submission) validate() error {
	var missing []string
	if s.Target == "" {
		missing = append(missing, "target text")
	}
	if s.Language == "" {
		missing = append(missing, "language")
	}
	if s.UserID == "" {
		missing = append(missing, "user id")
	}
	if s.ItemID == "" {
		missing = append(missing, "item id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSubmission, strings.Join(missing, ", "))
	}
	return nil
}

// AttemptResult is the synchronous response to a submission: the recorded
// attempt plus the ephemeral phoneme alignment, when transliteration was
// available for the language.
type AttemptResult struct {
	Attempt   *attempt.PracticeAttempt
	Alignment *phoneme.Alignment
}

// ─── Submission stage ─────────────────────────────────────────────────────────

// SubmitAttempt runs the mandatory assessment stage: transcribe, score,
// align, record. It returns typed errors for the cases the UI renders
// specially: [ErrNoAudio], [ErrNoSpeech], and [ErrSTTUnavailable] (retryable,
// nothing recorded).
func (s *Service) SubmitAttempt(ctx context.Context, sub Submission) (*AttemptResult, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	if len(sub.Audio) < int(s.minAudioBytes.Load()) {
		s.metrics.RecordAttempt(ctx, sub.Language, "no_audio")
		return nil, ErrNoAudio
	}

	start := time.Now()
	transcript, err := s.stt.Transcribe(ctx, sub.Audio, sub.Language)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("language", sub.Language)))
	if err != nil {
		s.metrics.RecordProviderError(ctx, "stt", "transport")
		s.metrics.RecordAttempt(ctx, sub.Language, "stt_error")
		return nil, fmt.Errorf("%w: %v", ErrSTTUnavailable, err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		s.metrics.RecordAttempt(ctx, sub.Language, "no_speech")
		return nil, ErrNoSpeech
	}

	verdict := scoring.Score(sub.Target, transcript.Text, transcript.Confidence, transcript.Words)

	targetIPA, spokenIPA := s.transliterate(ctx, sub.Target, transcript.Text, sub.Language)
	var alignment *phoneme.Alignment
	if targetIPA != "" && spokenIPA != "" {
		al := phoneme.Compare(targetIPA, spokenIPA, s.tipsFor(sub.Language))
		alignment = &al
	}

	id := uuid.New()
	var audioRef string
	if s.audio != nil {
		ref, err := s.audio.Save(id, sub.Format, sub.Audio)
		if err != nil {
			s.logger.Warn("recording not persisted", "attempt_id", id, "err", err)
		} else {
			audioRef = ref
		}
	}

	att := &attempt.PracticeAttempt{
		ID:              id,
		UserID:          sub.UserID,
		ItemID:          sub.ItemID,
		Language:        sub.Language,
		AudioRef:        audioRef,
		TargetText:      sub.Target,
		TranscribedText: transcript.Text,
		Confidence:      transcript.Confidence,
		WordScores:      transcript.Words,
		Score:           verdict.Score,
		Feedback:        verdict.Message,
		TargetIPA:       targetIPA,
		TranscribedIPA:  spokenIPA,
		AnalysisType:    attempt.AnalysisSTTOnly,
		CreatedAt:       time.Now().UTC(),
	}
	if err := att.Validate(); err != nil {
		return nil, fmt.Errorf("assess: attempt invalid: %w", err)
	}
	if err := s.store.Record(ctx, att); err != nil {
		return nil, fmt.Errorf("assess: record attempt: %w", err)
	}

	s.metrics.RecordAttempt(ctx, sub.Language, "scored")
	s.logger.Info("attempt scored",
		"attempt_id", id,
		"language", sub.Language,
		"score", verdict.Score,
		"confidence", transcript.Confidence,
	)
	return &AttemptResult{Attempt: att, Alignment: alignment}, nil
}

// transliterate converts the target phrase and the transcription to IPA
// concurrently. Any failure skips phoneme comparison for this attempt; the
// word-level score is unaffected.
func (s *Service) transliterate(ctx context.Context, target, transcribed, language string) (targetIPA, spokenIPA string) {
	if s.g2p == nil {
		return "", ""
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ipa, err := s.g2p.ToIPA(gctx, target, language)
		if err != nil {
			return err
		}
		targetIPA = ipa
		return nil
	})
	g.Go(func() error {
		ipa, err := s.g2p.ToIPA(gctx, transcribed, language)
		if err != nil {
			return err
		}
		spokenIPA = ipa
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, g2p.ErrLanguageUnsupported) {
			s.logger.Debug("no transliteration support", "language", language)
		} else {
			s.metrics.RecordProviderError(ctx, "g2p", "transport")
			s.logger.Warn("transliteration failed, skipping phoneme comparison",
				"language", language, "err", err)
		}
		return "", ""
	}
	return targetIPA, spokenIPA
}

// tipsFor returns the language's confusion-pair table, or nil when no pack
// covers the language.
func (s *Service) tipsFor(language string) phoneme.TipProvider {
	if s.packs == nil {
		return nil
	}
	if pack, ok := s.packs.Resolve(language); ok {
		return pack
	}
	return nil
}

// ─── Coaching stage ───────────────────────────────────────────────────────────

// CoachingOutcome is the result of one coaching request. Cached is true when
// the attempt already carried a coaching result and no collaborator call was
// made.
type CoachingOutcome struct {
	Attempt *attempt.PracticeAttempt
	Cached  bool
}

// RequestCoaching attaches an LLM coaching critique to an existing attempt.
// It is idempotent: a second request on a coached attempt returns the stored
// result without re-invoking the collaborator, and concurrent requests for
// the same attempt share a single invocation.
//
// Coaching failures (timeout, transport, unparseable response) are soft: the
// error is returned to this caller only and the attempt remains valid as
// stt_only.
func (s *Service) RequestCoaching(ctx context.Context, id uuid.UUID) (*CoachingOutcome, error) {
	v, err, _ := s.coachingCalls.Do(id.String(), func() (any, error) {
		return s.requestCoaching(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CoachingOutcome), nil
}

func (s *Service) requestCoaching(ctx context.Context, id uuid.UUID) (*CoachingOutcome, error) {
	att, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if att.AnalysisType == attempt.AnalysisSTTPlusCoaching {
		s.metrics.RecordCoachingRequest(ctx, "cached")
		return &CoachingOutcome{Attempt: att, Cached: true}, nil
	}
	if s.analyzer == nil {
		return nil, ErrCoachingUnavailable
	}

	var audio []byte
	var format string
	if s.audio != nil && att.AudioRef != "" {
		data, err := s.audio.Load(att.AudioRef)
		if err != nil {
			s.logger.Warn("recording unavailable for coaching, falling back to transcript",
				"attempt_id", id, "err", err)
		} else {
			audio = data
			format = strings.TrimPrefix(filepath.Ext(att.AudioRef), ".")
		}
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(s.coachingTimeout.Load()))
	defer cancel()

	start := time.Now()
	result, err := s.analyzer.Analyze(cctx, coaching.Request{
		Audio:           audio,
		Format:          format,
		TargetPhrase:    att.TargetText,
		Language:        att.Language,
		TranscribedText: att.TranscribedText,
		WordScores:      att.WordScores,
	})
	s.metrics.CoachingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		status := coachingFailureStatus(err)
		s.metrics.RecordCoachingRequest(ctx, status)
		if status == "parse_error" {
			s.metrics.CoachingParseFailures.Add(ctx, 1)
		}
		return nil, fmt.Errorf("assess: coaching attempt %s: %w", id, err)
	}

	for _, issue := range result.SoundIssues {
		if issue.ConfidenceWarning {
			s.metrics.RecordCrossValidationFlag(ctx, "confidence_warning")
		}
		if issue.CrossValidated {
			s.metrics.RecordCrossValidationFlag(ctx, "cross_validated")
		}
	}

	coachedAt := time.Now().UTC()
	if err := s.store.AttachCoaching(ctx, id, *result, coachedAt); err != nil {
		if errors.Is(err, attempt.ErrAlreadyCoached) {
			// Lost the race to another process; serve what is stored.
			stored, gerr := s.store.GetByID(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			s.metrics.RecordCoachingRequest(ctx, "cached")
			return &CoachingOutcome{Attempt: stored, Cached: true}, nil
		}
		return nil, fmt.Errorf("assess: attach coaching to %s: %w", id, err)
	}

	att.Coaching = result
	att.CoachedAt = &coachedAt
	att.AnalysisType = attempt.AnalysisSTTPlusCoaching

	s.metrics.RecordCoachingRequest(ctx, "ok")
	s.logger.Info("coaching attached",
		"attempt_id", id,
		"clarity", result.Clarity,
		"sound_issues", len(result.SoundIssues),
	)

	if s.drills != nil && result.Drill != "" {
		entry := drill.Entry{
			AttemptID:  id,
			Language:   att.Language,
			TargetText: att.TargetText,
			Text:       result.Drill,
			CreatedAt:  coachedAt,
		}
		if err := s.drills.Add(ctx, entry); err != nil {
			s.logger.Warn("drill not indexed", "attempt_id", id, "err", err)
		}
	}

	return &CoachingOutcome{Attempt: att}, nil
}

// coachingFailureStatus classifies a coaching error for metrics.
func coachingFailureStatus(err error) string {
	var parseErr *coaching.ParseError
	switch {
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "provider_error"
	}
}

// ─── Reads ────────────────────────────────────────────────────────────────────

// GetAttempt retrieves one attempt by id.
func (s *Service) GetAttempt(ctx context.Context, id uuid.UUID) (*attempt.PracticeAttempt, error) {
	return s.store.GetByID(ctx, id)
}

// GetProgress returns per-item aggregates for a user. An empty itemID
// aggregates across all items.
func (s *Service) GetProgress(ctx context.Context, userID, itemID string) ([]attempt.ProgressEntry, error) {
	return s.store.Progress(ctx, userID, itemID)
}

// GetHistory returns an item's attempts, most recent first. limit <= 0
// applies the configured page size.
func (s *Service) GetHistory(ctx context.Context, itemID string, limit, offset int) ([]attempt.PracticeAttempt, error) {
	if limit <= 0 {
		limit = int(s.historyPageSize.Load())
	}
	return s.store.History(ctx, itemID, limit, offset)
}

// SubmitFeedback stores a learner's rating of an attempt's assessment.
func (s *Service) SubmitFeedback(ctx context.Context, fb attempt.Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if err := fb.Validate(); err != nil {
		return err
	}
	return s.store.SaveFeedback(ctx, fb)
}

// SimilarDrills returns drills from other attempts in the same language,
// closest first. Requires the drill library; returns [ErrDrillsUnavailable]
// without it.
func (s *Service) SimilarDrills(ctx context.Context, id uuid.UUID) ([]drill.Result, error) {
	if s.drills == nil {
		return nil, ErrDrillsUnavailable
	}
	att, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.drills.Similar(ctx, id, att.Language, att.TargetText, int(s.drillTopK.Load()))
}
