package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
	"github.com/Strob0t/TaskPilot/internal/port/messagequeue"
)

// fakeQueue records published messages in-process.
type fakeQueue struct {
	mu         sync.Mutex
	published  []publishedMsg
	publishErr error
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *fakeQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

var _ messagequeue.Queue = (*fakeQueue)(nil)

func (q *fakeQueue) messages(subject string) []publishedMsg {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []publishedMsg
	for _, m := range q.published {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// failingStore rejects every write with the configured error.
type failingStore struct {
	err error
}

func (s *failingStore) InsertDecision(context.Context, *decision.RoutingDecision) error {
	return s.err
}

func (s *failingStore) QueryDecisions(context.Context, decisionstore.Filter) ([]decision.RoutingDecision, error) {
	return nil, s.err
}

func (s *failingStore) LatestDecision(context.Context, string) (*decision.RoutingDecision, error) {
	return nil, s.err
}

func (s *failingStore) InsertFeedback(context.Context, *decision.Feedback) error {
	return s.err
}

func (s *failingStore) ListFeedback(context.Context, time.Time) ([]decision.Feedback, error) {
	return nil, s.err
}

var errStoreDown = errors.New("store down")

// fakeCache is a minimal in-process cache for calibration report tests. TTLs
// are recorded but never enforced.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
