package attempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for testing and single-process use.
type MemStore struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]*PracticeAttempt
	feedback []Feedback
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{attempts: make(map[uuid.UUID]*PracticeAttempt)}
}

// Record implements [Store.Record].
func (s *MemStore) Record(ctx context.Context, a *PracticeAttempt) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

// GetByID implements [Store.GetByID].
func (s *MemStore) GetByID(ctx context.Context, id uuid.UUID) (*PracticeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attempts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// AttachCoaching implements [Store.AttachCoaching].
func (s *MemStore) AttachCoaching(ctx context.Context, id uuid.UUID, result CoachingResult, coachedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return ErrNotFound
	}
	if a.AnalysisType == AnalysisSTTPlusCoaching {
		return ErrAlreadyCoached
	}

	a.Coaching = &result
	a.CoachedAt = &coachedAt
	a.AnalysisType = AnalysisSTTPlusCoaching
	return nil
}

// History implements [Store.History].
func (s *MemStore) History(ctx context.Context, itemID string, limit, offset int) ([]PracticeAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	matching := make([]PracticeAttempt, 0)
	for _, a := range s.attempts {
		if a.ItemID == itemID {
			matching = append(matching, *a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].CreatedAt.After(matching[j].CreatedAt)
		}
		return matching[i].ID.String() > matching[j].ID.String()
	})

	if offset >= len(matching) {
		return []PracticeAttempt{}, nil
	}
	matching = matching[offset:]
	if len(matching) > limit {
		matching = matching[:limit]
	}
	return matching, nil
}

// Progress implements [Store.Progress].
func (s *MemStore) Progress(ctx context.Context, userID, itemID string) ([]ProgressEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byItem := make(map[string]*ProgressEntry)
	sums := make(map[string]float64)
	for _, a := range s.attempts {
		if a.UserID != userID {
			continue
		}
		if itemID != "" && a.ItemID != itemID {
			continue
		}
		e, ok := byItem[a.ItemID]
		if !ok {
			e = &ProgressEntry{UserID: userID, ItemID: a.ItemID}
			byItem[a.ItemID] = e
		}
		e.Attempts++
		sums[a.ItemID] += a.Confidence
		if a.Confidence > e.MaxConfidence {
			e.MaxConfidence = a.Confidence
		}
		if a.CreatedAt.After(e.LastAttempt) {
			e.LastAttempt = a.CreatedAt
		}
	}

	entries := make([]ProgressEntry, 0, len(byItem))
	for item, e := range byItem {
		e.MeanConfidence = sums[item] / float64(e.Attempts)
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ItemID < entries[j].ItemID })
	return entries, nil
}

// SaveFeedback implements [Store.SaveFeedback].
func (s *MemStore) SaveFeedback(ctx context.Context, fb Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[fb.AttemptID]; !ok {
		return ErrNotFound
	}
	s.feedback = append(s.feedback, fb)
	return nil
}

// FeedbackFor returns all stored feedback for an attempt, for tests.
func (s *MemStore) FeedbackFor(id uuid.UUID) []Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Feedback
	for _, fb := range s.feedback {
		if fb.AttemptID == id {
			out = append(out, fb)
		}
	}
	return out
}
