// Package memory implements the decision store port with an in-process,
// append-only structure. It backs single-process deployments and tests;
// multi-process deployments use the postgres adapter.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/TaskPilot/internal/domain"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
)

// Store is a concurrency-safe in-memory decision/feedback store. Writers
// take the lock briefly to append; readers copy matching records out, so a
// returned slice never aliases live state.
type Store struct {
	mu        sync.RWMutex
	decisions []decision.RoutingDecision
	feedback  []decision.Feedback
	latest    map[string]int // task id -> index of most recent decision
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{latest: make(map[string]int)}
}

// InsertDecision appends a decision.
func (s *Store) InsertDecision(_ context.Context, d *decision.RoutingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, *d)
	idx := len(s.decisions) - 1
	if prev, ok := s.latest[d.TaskID]; !ok || !s.decisions[prev].CreatedAt.After(d.CreatedAt) {
		s.latest[d.TaskID] = idx
	}
	return nil
}

// QueryDecisions returns decisions matching the filter, most recent first.
func (s *Store) QueryDecisions(_ context.Context, f decisionstore.Filter) ([]decision.RoutingDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []decision.RoutingDecision
	for i := range s.decisions {
		d := &s.decisions[i]
		if f.TaskID != "" && d.TaskID != f.TaskID {
			continue
		}
		if f.Destination != "" && d.Destination != f.Destination {
			continue
		}
		if f.Strategy != "" && d.Strategy != f.Strategy {
			continue
		}
		if !f.Since.IsZero() && d.CreatedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && d.CreatedAt.After(f.Until) {
			continue
		}
		out = append(out, *d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// LatestDecision returns the most recent decision for a task.
func (s *Store) LatestDecision(_ context.Context, taskID string) (*decision.RoutingDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.latest[taskID]
	if !ok {
		return nil, domain.ErrNoDecision
	}
	d := s.decisions[idx]
	return &d, nil
}

// InsertFeedback appends a feedback record.
func (s *Store) InsertFeedback(_ context.Context, fb *decision.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, *fb)
	return nil
}

// ListFeedback returns feedback created at or after since, oldest first.
func (s *Store) ListFeedback(_ context.Context, since time.Time) ([]decision.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []decision.Feedback
	for i := range s.feedback {
		if since.IsZero() || !s.feedback[i].CreatedAt.Before(since) {
			out = append(out, s.feedback[i])
		}
	}
	return out, nil
}

var _ decisionstore.Store = (*Store)(nil)
