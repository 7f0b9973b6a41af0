package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/internal/attempt/postgres"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if ACCENTOR_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("ACCENTOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ACCENTOR_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] against a clean schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()
	dsn := testDSN(t)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx,
		`DROP TABLE IF EXISTS attempt_feedback, practice_attempts CASCADE`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func testAttempt(id uuid.UUID, createdAt time.Time) *attempt.PracticeAttempt {
	return &attempt.PracticeAttempt{
		ID:              id,
		UserID:          "user-1",
		ItemID:          "item-1",
		Language:        "fr",
		AudioRef:        "audio/" + id.String() + ".wav",
		TargetText:      "bonjour",
		TranscribedText: "bonjour",
		Confidence:      0.91,
		WordScores:      []stt.WordScore{{Word: "bonjour", Confidence: 0.91}},
		Score:           0.91,
		Feedback:        "Perfect! You said it exactly right.",
		TargetIPA:       "bɔ̃ʒuʁ",
		TranscribedIPA:  "bɔ̃ʒuʁ",
		AnalysisType:    attempt.AnalysisSTTOnly,
		CreatedAt:       createdAt,
	}
}

func TestRecordAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testAttempt(uuid.New(), time.Now().UTC().Truncate(time.Millisecond))
	want.WordScores = []stt.WordScore{
		{Word: "bon", Confidence: 0.95},
		{Word: "jour", Confidence: 0.42},
	}
	want.TranscribedText = "bon jour"

	if err := store.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.GetByID(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserID != want.UserID || got.TargetText != want.TargetText {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.WordScores) != len(want.WordScores) {
		t.Fatalf("len(WordScores) = %d, want %d", len(got.WordScores), len(want.WordScores))
	}
	for i := range want.WordScores {
		if got.WordScores[i] != want.WordScores[i] {
			t.Errorf("WordScores[%d] = %+v, want %+v", i, got.WordScores[i], want.WordScores[i])
		}
	}
	if got.Coaching != nil || got.CoachedAt != nil {
		t.Errorf("fresh attempt carries coaching fields: %+v", got)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, attempt.ErrNotFound) {
		t.Errorf("GetByID error = %v, want ErrNotFound", err)
	}
}

func TestAttachCoaching(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testAttempt(uuid.New(), time.Now().UTC())
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("Record: %v", err)
	}

	result := attempt.CoachingResult{
		Clarity:       82,
		Rhythm:        attempt.RhythmNatural,
		SoundIssues:   []attempt.SoundIssue{{TargetSound: "ʒ", ProducedSound: "dʒ", Excerpt: "bonjour", Suggestion: "soften the j"}},
		Drill:         "say 'je joue' five times",
		Encouragement: "Nice rhythm!",
	}
	coachedAt := time.Now().UTC().Truncate(time.Millisecond)

	if err := store.AttachCoaching(ctx, a.ID, result, coachedAt); err != nil {
		t.Fatalf("AttachCoaching: %v", err)
	}

	got, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AnalysisType != attempt.AnalysisSTTPlusCoaching {
		t.Errorf("AnalysisType = %q, want %q", got.AnalysisType, attempt.AnalysisSTTPlusCoaching)
	}
	if got.Coaching == nil || got.Coaching.Clarity != 82 {
		t.Errorf("Coaching = %+v, want clarity 82", got.Coaching)
	}
	if got.CoachedAt == nil || !got.CoachedAt.Equal(coachedAt) {
		t.Errorf("CoachedAt = %v, want %v", got.CoachedAt, coachedAt)
	}
	// STT fields are untouched by the attach.
	if got.Score != a.Score || got.Confidence != a.Confidence {
		t.Errorf("attach mutated STT fields: %+v", got)
	}

	// Second attach must not overwrite.
	if err := store.AttachCoaching(ctx, a.ID, attempt.CoachingResult{Clarity: 1}, time.Now()); !errors.Is(err, attempt.ErrAlreadyCoached) {
		t.Errorf("second AttachCoaching error = %v, want ErrAlreadyCoached", err)
	}

	if err := store.AttachCoaching(ctx, uuid.New(), result, coachedAt); !errors.Is(err, attempt.ErrNotFound) {
		t.Errorf("AttachCoaching on missing id error = %v, want ErrNotFound", err)
	}
}

func TestHistoryOrderAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		a := testAttempt(ids[i], base.Add(time.Duration(i)*time.Minute))
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}
	// An attempt for another item must not show up.
	other := testAttempt(uuid.New(), base)
	other.ItemID = "item-2"
	if err := store.Record(ctx, other); err != nil {
		t.Fatalf("Record other: %v", err)
	}

	page1, err := store.History(ctx, "item-1", 3, 0)
	if err != nil {
		t.Fatalf("History page 1: %v", err)
	}
	page2, err := store.History(ctx, "item-1", 3, 3)
	if err != nil {
		t.Fatalf("History page 2: %v", err)
	}

	if len(page1) != 3 || len(page2) != 2 {
		t.Fatalf("page sizes = %d, %d, want 3, 2", len(page1), len(page2))
	}
	all := append(page1, page2...)
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Errorf("history not most-recent-first at index %d", i)
		}
	}
	if all[0].ID != ids[4] {
		t.Errorf("first history entry = %s, want the latest attempt %s", all[0].ID, ids[4])
	}
}

func TestProgressAggregates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	confidences := []float64{0.5, 0.7, 0.9}
	for i, conf := range confidences {
		a := testAttempt(uuid.New(), base.Add(time.Duration(i)*time.Minute))
		a.Confidence = conf
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	entries, err := store.Progress(ctx, "user-1", "item-1")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", e.Attempts)
	}
	if e.MaxConfidence != 0.9 {
		t.Errorf("MaxConfidence = %v, want 0.9", e.MaxConfidence)
	}
	if e.MeanConfidence < 0.69 || e.MeanConfidence > 0.71 {
		t.Errorf("MeanConfidence = %v, want ~0.7", e.MeanConfidence)
	}

	none, err := store.Progress(ctx, "user-unknown", "")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Progress for unknown user = %v, want empty", none)
	}
}

func TestSaveFeedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testAttempt(uuid.New(), time.Now().UTC())
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("Record: %v", err)
	}

	fb := attempt.Feedback{AttemptID: a.ID, Rating: 4, Comment: "helpful", CreatedAt: time.Now().UTC()}
	if err := store.SaveFeedback(ctx, fb); err != nil {
		t.Fatalf("SaveFeedback: %v", err)
	}

	fb.AttemptID = uuid.New()
	if err := store.SaveFeedback(ctx, fb); !errors.Is(err, attempt.ErrNotFound) {
		t.Errorf("SaveFeedback on missing attempt error = %v, want ErrNotFound", err)
	}
}
