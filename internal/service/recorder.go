package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
	"github.com/Strob0t/TaskPilot/internal/port/messagequeue"
	"github.com/Strob0t/TaskPilot/internal/resilience"
)

// Recorder appends routing decisions to the history store and announces them
// on the message queue. Recording is an explicit step separate from Decide,
// so callers choose whether a decision enters history.
type Recorder struct {
	store   decisionstore.Store
	queue   messagequeue.Queue
	breaker *resilience.Breaker
}

// NewRecorder creates a Recorder. The queue is optional; pass nil to skip
// event publication.
func NewRecorder(store decisionstore.Store, queue messagequeue.Queue, breaker *resilience.Breaker) *Recorder {
	return &Recorder{store: store, queue: queue, breaker: breaker}
}

// Record assigns the decision an id (when the caller did not), appends it to
// the store, and publishes a decisions.recorded event. The returned id
// identifies the immutable history entry; a later decision for the same task
// appends a new entry rather than replacing this one.
func (r *Recorder) Record(ctx context.Context, d *decision.RoutingDecision) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	insert := func() error { return r.store.InsertDecision(ctx, d) }
	var err error
	if r.breaker != nil {
		err = r.breaker.Execute(insert)
	} else {
		err = insert()
	}
	if err != nil {
		return "", fmt.Errorf("record decision for task %s: %w", d.TaskID, err)
	}

	r.publish(ctx, d)
	return d.ID, nil
}

// History returns all decisions for a task, most recent first.
func (r *Recorder) History(ctx context.Context, taskID string) ([]decision.RoutingDecision, error) {
	return r.store.QueryDecisions(ctx, decisionstore.Filter{TaskID: taskID})
}

// Query returns decisions matching the filter, most recent first.
func (r *Recorder) Query(ctx context.Context, f decisionstore.Filter) ([]decision.RoutingDecision, error) {
	return r.store.QueryDecisions(ctx, f)
}

// Latest returns the most recent decision for a task.
func (r *Recorder) Latest(ctx context.Context, taskID string) (*decision.RoutingDecision, error) {
	return r.store.LatestDecision(ctx, taskID)
}

// publish emits the decisions.recorded event. Publication is best-effort:
// a queue failure is logged, never surfaced to the recording caller.
func (r *Recorder) publish(ctx context.Context, d *decision.RoutingDecision) {
	if r.queue == nil {
		return
	}
	payload := messagequeue.DecisionRecordedPayload{
		DecisionID:  d.ID,
		TaskID:      d.TaskID,
		Destination: d.Destination,
		Confidence:  d.Confidence,
		Strategy:    string(d.Strategy),
		RuleIDs:     d.RuleIDs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("recorder: marshal decision event", "decision_id", d.ID, "error", err)
		return
	}
	if err := r.queue.Publish(ctx, messagequeue.SubjectDecisionRecorded, data); err != nil {
		slog.Warn("recorder: publish decision event", "decision_id", d.ID, "error", err)
	}
}
