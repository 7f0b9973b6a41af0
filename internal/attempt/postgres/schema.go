// Package postgres provides the PostgreSQL-backed implementation of
// [attempt.Store].
//
// Word scores and coaching results are serialised as JSONB: they are read and
// written whole with the attempt row and never queried field-by-field, so a
// relational decomposition would buy nothing.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlAttempts = `
CREATE TABLE IF NOT EXISTS practice_attempts (
    id               UUID         PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    item_id          TEXT         NOT NULL,
    language         TEXT         NOT NULL DEFAULT '',
    audio_ref        TEXT         NOT NULL DEFAULT '',
    target_text      TEXT         NOT NULL,
    transcribed_text TEXT         NOT NULL DEFAULT '',
    confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
    word_scores      JSONB        NOT NULL DEFAULT '[]',
    score            DOUBLE PRECISION NOT NULL DEFAULT 0,
    feedback         TEXT         NOT NULL DEFAULT '',
    target_ipa       TEXT         NOT NULL DEFAULT '',
    transcribed_ipa  TEXT         NOT NULL DEFAULT '',
    analysis_type    TEXT         NOT NULL DEFAULT 'stt_only',
    coaching         JSONB,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    coached_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_attempts_item_created
    ON practice_attempts (item_id, created_at DESC, id DESC);

CREATE INDEX IF NOT EXISTS idx_attempts_user_item
    ON practice_attempts (user_id, item_id);
`

const ddlFeedback = `
CREATE TABLE IF NOT EXISTS attempt_feedback (
    id         BIGSERIAL    PRIMARY KEY,
    attempt_id UUID         NOT NULL REFERENCES practice_attempts (id) ON DELETE CASCADE,
    rating     SMALLINT     NOT NULL,
    comment    TEXT         NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_attempt
    ON attempt_feedback (attempt_id);
`

// Migrate creates or ensures all required tables and indexes exist.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlAttempts, ddlFeedback} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("attempt migrate: %w", err)
		}
	}
	return nil
}
