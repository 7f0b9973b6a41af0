package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accentor-app/accentor/internal/attempt"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// Compile-time interface check.
var _ attempt.Store = (*Store)(nil)

// defaultHistoryLimit bounds History page sizes when callers pass limit <= 0.
const defaultHistoryLimit = 20

// Store is the PostgreSQL-backed implementation of [attempt.Store].
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("attempt store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("attempt store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("attempt store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool without running migrations,
// for callers that share one pool across stores.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying connection pool for health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases all connections held by the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Record implements [attempt.Store.Record].
func (s *Store) Record(ctx context.Context, a *attempt.PracticeAttempt) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("attempt store: record: %w", err)
	}

	wordsJSON, err := json.Marshal(emptySlice(a.WordScores))
	if err != nil {
		return fmt.Errorf("attempt store: marshal word scores: %w", err)
	}
	var coachingJSON []byte
	if a.Coaching != nil {
		if coachingJSON, err = json.Marshal(a.Coaching); err != nil {
			return fmt.Errorf("attempt store: marshal coaching: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO practice_attempts (
			id, user_id, item_id, language, audio_ref, target_text, transcribed_text,
			confidence, word_scores, score, feedback, target_ipa,
			transcribed_ipa, analysis_type, coaching, created_at, coached_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.UserID, a.ItemID, a.Language, a.AudioRef, a.TargetText, a.TranscribedText,
		a.Confidence, wordsJSON, a.Score, a.Feedback, a.TargetIPA,
		a.TranscribedIPA, string(a.AnalysisType), coachingJSON, a.CreatedAt, a.CoachedAt)
	if err != nil {
		return fmt.Errorf("attempt store: insert attempt %s: %w", a.ID, err)
	}
	return nil
}

// GetByID implements [attempt.Store.GetByID].
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*attempt.PracticeAttempt, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, item_id, language, audio_ref, target_text, transcribed_text,
		       confidence, word_scores, score, feedback, target_ipa,
		       transcribed_ipa, analysis_type, coaching, created_at, coached_at
		FROM practice_attempts WHERE id = $1`, id)

	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, attempt.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attempt store: get %s: %w", id, err)
	}
	return a, nil
}

// AttachCoaching implements [attempt.Store.AttachCoaching]. The guard on
// analysis_type in the WHERE clause makes the update atomic: a concurrent
// second attach matches zero rows instead of overwriting.
func (s *Store) AttachCoaching(ctx context.Context, id uuid.UUID, result attempt.CoachingResult, coachedAt time.Time) error {
	coachingJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("attempt store: marshal coaching: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE practice_attempts
		SET coaching = $2, coached_at = $3, analysis_type = $4
		WHERE id = $1 AND analysis_type = $5`,
		id, coachingJSON, coachedAt,
		string(attempt.AnalysisSTTPlusCoaching), string(attempt.AnalysisSTTOnly))
	if err != nil {
		return fmt.Errorf("attempt store: attach coaching to %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the attempt is missing or already coached.
	var analysisType string
	err = s.pool.QueryRow(ctx,
		`SELECT analysis_type FROM practice_attempts WHERE id = $1`, id).Scan(&analysisType)
	if errors.Is(err, pgx.ErrNoRows) {
		return attempt.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("attempt store: attach coaching to %s: %w", id, err)
	}
	return attempt.ErrAlreadyCoached
}

// History implements [attempt.Store.History].
func (s *Store) History(ctx context.Context, itemID string, limit, offset int) ([]attempt.PracticeAttempt, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, item_id, language, audio_ref, target_text, transcribed_text,
		       confidence, word_scores, score, feedback, target_ipa,
		       transcribed_ipa, analysis_type, coaching, created_at, coached_at
		FROM practice_attempts
		WHERE item_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, itemID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("attempt store: history for item %s: %w", itemID, err)
	}
	defer rows.Close()

	attempts := make([]attempt.PracticeAttempt, 0, limit)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("attempt store: history for item %s: %w", itemID, err)
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attempt store: history for item %s: %w", itemID, err)
	}
	return attempts, nil
}

// Progress implements [attempt.Store.Progress].
func (s *Store) Progress(ctx context.Context, userID, itemID string) ([]attempt.ProgressEntry, error) {
	query := `
		SELECT user_id, item_id, count(*), avg(confidence), max(confidence), max(created_at)
		FROM practice_attempts
		WHERE user_id = $1`
	args := []any{userID}
	if itemID != "" {
		query += ` AND item_id = $2`
		args = append(args, itemID)
	}
	query += ` GROUP BY user_id, item_id ORDER BY item_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attempt store: progress for user %s: %w", userID, err)
	}
	defer rows.Close()

	entries := make([]attempt.ProgressEntry, 0)
	for rows.Next() {
		var e attempt.ProgressEntry
		if err := rows.Scan(&e.UserID, &e.ItemID, &e.Attempts,
			&e.MeanConfidence, &e.MaxConfidence, &e.LastAttempt); err != nil {
			return nil, fmt.Errorf("attempt store: progress for user %s: %w", userID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attempt store: progress for user %s: %w", userID, err)
	}
	return entries, nil
}

// SaveFeedback implements [attempt.Store.SaveFeedback].
func (s *Store) SaveFeedback(ctx context.Context, fb attempt.Feedback) error {
	if err := fb.Validate(); err != nil {
		return fmt.Errorf("attempt store: feedback: %w", err)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempt_feedback (attempt_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4)`,
		fb.AttemptID, fb.Rating, fb.Comment, fb.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return attempt.ErrNotFound
		}
		return fmt.Errorf("attempt store: feedback for %s: %w", fb.AttemptID, err)
	}
	return nil
}

// scanAttempt reads one attempt row from either a pgx.Row or pgx.Rows.
func scanAttempt(row pgx.Row) (*attempt.PracticeAttempt, error) {
	var (
		a            attempt.PracticeAttempt
		wordsJSON    []byte
		coachingJSON []byte
		analysisType string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.ItemID, &a.Language, &a.AudioRef, &a.TargetText,
		&a.TranscribedText, &a.Confidence, &wordsJSON, &a.Score, &a.Feedback,
		&a.TargetIPA, &a.TranscribedIPA, &analysisType, &coachingJSON,
		&a.CreatedAt, &a.CoachedAt)
	if err != nil {
		return nil, err
	}

	a.AnalysisType = attempt.AnalysisType(analysisType)
	a.WordScores = []stt.WordScore{}
	if err := json.Unmarshal(wordsJSON, &a.WordScores); err != nil {
		return nil, fmt.Errorf("unmarshal word scores: %w", err)
	}
	if len(coachingJSON) > 0 {
		a.Coaching = &attempt.CoachingResult{}
		if err := json.Unmarshal(coachingJSON, a.Coaching); err != nil {
			return nil, fmt.Errorf("unmarshal coaching: %w", err)
		}
	}
	return &a, nil
}

// emptySlice maps a nil slice to an empty one so JSONB columns always hold
// an array, never null.
func emptySlice(words []stt.WordScore) []stt.WordScore {
	if words == nil {
		return []stt.WordScore{}
	}
	return words
}
