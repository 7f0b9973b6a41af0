// Package drill maintains a searchable library of the practice drills the
// coach has produced, so similar past drills can be resurfaced for new
// attempts instead of always waiting on a fresh coaching call.
//
// Drills are embedded and stored in a PostgreSQL table with a pgvector HNSW
// index; lookup is cosine nearest-neighbour search scoped to one language.
package drill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/accentor-app/accentor/pkg/provider/embeddings"
)

// Entry is one stored drill with its provenance.
type Entry struct {
	// AttemptID is the attempt whose coaching produced this drill.
	AttemptID uuid.UUID

	// Language is the language the drill targets.
	Language string

	// TargetText is the phrase the drill was written for.
	TargetText string

	// Text is the drill itself.
	Text string

	CreatedAt time.Time
}

// Result pairs a retrieved drill with its cosine distance from the query.
// Lower distance means higher similarity.
type Result struct {
	Entry    Entry
	Distance float64
}

// Library is the pgvector-backed drill store.
// All methods are safe for concurrent use.
type Library struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// NewLibrary connects to the database at dsn, registers pgvector types on
// every connection, and ensures the drills table exists with a vector column
// sized to the embedder's dimensionality.
func NewLibrary(ctx context.Context, dsn string, embedder embeddings.Provider) (*Library, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("drill library: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("drill library: create pool: %w", err)
	}
	if err := migrate(ctx, pool, embedder.Dimensions()); err != nil {
		pool.Close()
		return nil, err
	}
	return &Library{pool: pool, embedder: embedder}, nil
}

// Close releases the underlying connection pool.
func (l *Library) Close() { l.pool.Close() }

func migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS drills (
    attempt_id  UUID         PRIMARY KEY,
    language    TEXT         NOT NULL,
    target_text TEXT         NOT NULL,
    drill_text  TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drills_embedding
    ON drills USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_drills_language
    ON drills (language);
`, dimensions)

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("drill library: migrate: %w", err)
	}
	return nil
}

// Add embeds and upserts a drill. An existing entry for the same attempt is
// completely replaced, so re-running coaching never duplicates rows.
func (l *Library) Add(ctx context.Context, entry Entry) error {
	embedding, err := l.embedder.Embed(ctx, entry.TargetText+"\n"+entry.Text)
	if err != nil {
		return fmt.Errorf("drill library: embed drill for attempt %s: %w", entry.AttemptID, err)
	}

	const q = `
		INSERT INTO drills (attempt_id, language, target_text, drill_text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attempt_id) DO UPDATE SET
		    language    = EXCLUDED.language,
		    target_text = EXCLUDED.target_text,
		    drill_text  = EXCLUDED.drill_text,
		    embedding   = EXCLUDED.embedding,
		    created_at  = EXCLUDED.created_at`

	_, err = l.pool.Exec(ctx, q,
		entry.AttemptID, entry.Language, entry.TargetText, entry.Text,
		pgvector.NewVector(embedding), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("drill library: add drill for attempt %s: %w", entry.AttemptID, err)
	}
	return nil
}

// Similar returns up to topK drills for the same language closest to the
// given phrase, excluding the attempt's own drill. Results are ordered by
// ascending cosine distance.
func (l *Library) Similar(ctx context.Context, attemptID uuid.UUID, language, phrase string, topK int) ([]Result, error) {
	embedding, err := l.embedder.Embed(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("drill library: embed query: %w", err)
	}

	const q = `
		SELECT attempt_id, language, target_text, drill_text, created_at,
		       embedding <=> $1 AS distance
		FROM   drills
		WHERE  language = $2 AND attempt_id <> $3
		ORDER  BY distance
		LIMIT  $4`

	rows, err := l.pool.Query(ctx, q, pgvector.NewVector(embedding), language, attemptID, topK)
	if err != nil {
		return nil, fmt.Errorf("drill library: similar: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var r Result
		err := row.Scan(&r.Entry.AttemptID, &r.Entry.Language, &r.Entry.TargetText,
			&r.Entry.Text, &r.Entry.CreatedAt, &r.Distance)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("drill library: scan rows: %w", err)
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}
