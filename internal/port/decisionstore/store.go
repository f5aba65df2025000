// Package decisionstore defines the storage port for decision and feedback
// history. Implementations must be append-only: records are inserted and
// queried, never updated or deleted.
package decisionstore

import (
	"context"
	"time"

	"github.com/Strob0t/TaskPilot/internal/domain/decision"
)

// Filter narrows a decision query. Zero-valued fields are ignored.
type Filter struct {
	TaskID      string
	Destination string
	Strategy    decision.Strategy
	Since       time.Time
	Until       time.Time
	Limit       int
}

// Store is the port interface for decision and feedback persistence.
// Implementations must be safe for concurrent writers, and writes must never
// block readers of already-recorded history.
type Store interface {
	// InsertDecision appends a decision. The decision's ID and CreatedAt
	// are set by the caller and must not be altered.
	InsertDecision(ctx context.Context, d *decision.RoutingDecision) error

	// QueryDecisions returns decisions matching the filter, most recent
	// first.
	QueryDecisions(ctx context.Context, f Filter) ([]decision.RoutingDecision, error)

	// LatestDecision returns the most recent decision for a task, or
	// domain.ErrNoDecision when none exists.
	LatestDecision(ctx context.Context, taskID string) (*decision.RoutingDecision, error)

	// InsertFeedback appends a feedback record linked to a decision.
	InsertFeedback(ctx context.Context, fb *decision.Feedback) error

	// ListFeedback returns feedback created at or after since, oldest
	// first. A zero since returns everything.
	ListFeedback(ctx context.Context, since time.Time) ([]decision.Feedback, error)
}
