package attempt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

func validAttempt() *attempt.PracticeAttempt {
	return &attempt.PracticeAttempt{
		ID:              uuid.New(),
		UserID:          "user-1",
		ItemID:          "item-1",
		Language:        "fr",
		TargetText:      "bonjour",
		TranscribedText: "bonjour",
		Confidence:      0.9,
		WordScores:      []stt.WordScore{{Word: "bonjour", Confidence: 0.9}},
		AnalysisType:    attempt.AnalysisSTTOnly,
		CreatedAt:       time.Now(),
	}
}

func TestPracticeAttemptValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*attempt.PracticeAttempt)
		wantErr bool
	}{
		{name: "valid", mutate: func(a *attempt.PracticeAttempt) {}, wantErr: false},
		{
			name: "empty transcription with empty word scores",
			mutate: func(a *attempt.PracticeAttempt) {
				a.TranscribedText = ""
				a.WordScores = nil
			},
			wantErr: false,
		},
		{
			name:    "missing user",
			mutate:  func(a *attempt.PracticeAttempt) { a.UserID = "" },
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			mutate:  func(a *attempt.PracticeAttempt) { a.Confidence = 1.5 },
			wantErr: true,
		},
		{
			name:    "word scores shorter than transcription",
			mutate:  func(a *attempt.PracticeAttempt) { a.TranscribedText = "bon jour" },
			wantErr: true,
		},
		{
			name:    "stt_only with coaching attached",
			mutate:  func(a *attempt.PracticeAttempt) { a.Coaching = &attempt.CoachingResult{} },
			wantErr: true,
		},
		{
			name: "stt_plus_coaching without coaching",
			mutate: func(a *attempt.PracticeAttempt) {
				a.AnalysisType = attempt.AnalysisSTTPlusCoaching
			},
			wantErr: true,
		},
		{
			name:    "unknown analysis type",
			mutate:  func(a *attempt.PracticeAttempt) { a.AnalysisType = "guesswork" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := validAttempt()
			tt.mutate(a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFeedbackValidateRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rating  int
		wantErr bool
	}{
		{name: "lowest star", rating: 1, wantErr: false},
		{name: "highest star", rating: 5, wantErr: false},
		{name: "zero", rating: 0, wantErr: true},
		{name: "too high", rating: 9, wantErr: true},
		{name: "negative", rating: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := attempt.Feedback{AttemptID: uuid.New(), Rating: tt.rating}
			err := fb.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			// Out-of-range ratings must surface the sentinel so callers can
			// map them with errors.Is instead of matching message text.
			if tt.wantErr && !errors.Is(err, attempt.ErrInvalidRating) {
				t.Errorf("Validate() error = %v, want ErrInvalidRating", err)
			}
		})
	}
}

func TestMemStoreAttachCoaching(t *testing.T) {
	t.Parallel()

	store := attempt.NewMemStore()
	ctx := context.Background()

	a := validAttempt()
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("Record: %v", err)
	}

	result := attempt.CoachingResult{Clarity: 75, Rhythm: attempt.RhythmNatural}
	if err := store.AttachCoaching(ctx, a.ID, result, time.Now()); err != nil {
		t.Fatalf("AttachCoaching: %v", err)
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AnalysisType != attempt.AnalysisSTTPlusCoaching || got.Coaching == nil {
		t.Errorf("attempt after attach = %+v, want coaching attached", got)
	}

	if err := store.AttachCoaching(ctx, a.ID, result, time.Now()); !errors.Is(err, attempt.ErrAlreadyCoached) {
		t.Errorf("second attach error = %v, want ErrAlreadyCoached", err)
	}
	if err := store.AttachCoaching(ctx, uuid.New(), result, time.Now()); !errors.Is(err, attempt.ErrNotFound) {
		t.Errorf("attach to missing id error = %v, want ErrNotFound", err)
	}
}

func TestMemStoreHistoryOrder(t *testing.T) {
	t.Parallel()

	store := attempt.NewMemStore()
	ctx := context.Background()
	base := time.Now()

	var latest uuid.UUID
	for i := 0; i < 4; i++ {
		a := validAttempt()
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		latest = a.ID
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	got, err := store.History(ctx, "item-1", 2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(got))
	}
	if got[0].ID != latest {
		t.Errorf("History[0].ID = %s, want latest %s", got[0].ID, latest)
	}
}
