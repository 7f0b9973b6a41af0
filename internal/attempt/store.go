package attempt

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when no attempt exists for the given id.
	ErrNotFound = errors.New("attempt: not found")

	// ErrAlreadyCoached is returned by AttachCoaching when the attempt
	// already carries a coaching result. Callers treat this as a signal to
	// serve the stored result rather than as a failure.
	ErrAlreadyCoached = errors.New("attempt: coaching already attached")
)

// Store persists practice attempts.
//
// Recording is append-only: an attempt row is written once and mutated at
// most once, by AttachCoaching. Implementations must be safe for concurrent
// use; every mutation targets a single row by attempt id, so no cross-row
// coordination is required.
type Store interface {
	// Record persists a new attempt. The attempt must pass Validate.
	Record(ctx context.Context, a *PracticeAttempt) error

	// GetByID retrieves an attempt by id.
	// Returns ErrNotFound when no such attempt exists.
	GetByID(ctx context.Context, id uuid.UUID) (*PracticeAttempt, error)

	// AttachCoaching atomically attaches a coaching result to an existing
	// stt_only attempt, setting its analysis type to stt_plus_coaching and
	// its coached-at timestamp. All fields change together or not at all.
	// Returns ErrNotFound when the attempt does not exist and
	// ErrAlreadyCoached when it already carries a coaching result.
	AttachCoaching(ctx context.Context, id uuid.UUID, result CoachingResult, coachedAt time.Time) error

	// History returns attempts for an item, most recent first, ties broken
	// by attempt id for stable pagination. limit <= 0 applies a default.
	// Returns an empty (non-nil) slice when no attempts exist.
	History(ctx context.Context, itemID string, limit, offset int) ([]PracticeAttempt, error)

	// Progress returns per-item aggregates for a user, recomputed on read.
	// An empty itemID aggregates across all of the user's items.
	// Returns an empty (non-nil) slice when the user has no attempts.
	Progress(ctx context.Context, userID, itemID string) ([]ProgressEntry, error)

	// SaveFeedback stores a learner's rating of an attempt's assessment.
	// Returns ErrNotFound when the attempt does not exist.
	SaveFeedback(ctx context.Context, fb Feedback) error
}
