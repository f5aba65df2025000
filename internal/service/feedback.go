package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	tpotel "github.com/Strob0t/TaskPilot/internal/adapter/otel"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
	"github.com/Strob0t/TaskPilot/internal/port/messagequeue"
)

// FeedbackError is returned when feedback cannot be linked to a decision.
// It is surfaced synchronously to the caller, never silently dropped.
type FeedbackError struct {
	TaskID string
	Err    error
}

func (e *FeedbackError) Error() string {
	return fmt.Sprintf("feedback for task %s: %v", e.TaskID, e.Err)
}

func (e *FeedbackError) Unwrap() error {
	return e.Err
}

// FeedbackCollector links outcome feedback to recorded decisions. Same
// append-only discipline as the Recorder: a correction appends a new record.
type FeedbackCollector struct {
	store   decisionstore.Store
	queue   messagequeue.Queue
	metrics *tpotel.Metrics
}

// NewFeedbackCollector creates a FeedbackCollector. The queue is optional.
func NewFeedbackCollector(store decisionstore.Store, queue messagequeue.Queue, opts ...FeedbackOption) *FeedbackCollector {
	c := &FeedbackCollector{store: store, queue: queue}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FeedbackOption configures optional FeedbackCollector collaborators.
type FeedbackOption func(*FeedbackCollector)

// WithFeedbackMetrics installs OTel metric instruments.
func WithFeedbackMetrics(m *tpotel.Metrics) FeedbackOption {
	return func(c *FeedbackCollector) { c.metrics = m }
}

// Collect validates the feedback against recorded history, links it to the
// most recent decision for the task, and appends it. Feedback for a task
// with no recorded decision fails with a *FeedbackError.
func (c *FeedbackCollector) Collect(ctx context.Context, taskID string, fb decision.Feedback) (string, error) {
	if fb.QualityRating < 0 || fb.QualityRating > 5 {
		return "", &FeedbackError{TaskID: taskID, Err: fmt.Errorf("quality rating %d out of range [1,5]", fb.QualityRating)}
	}

	latest, err := c.store.LatestDecision(ctx, taskID)
	if err != nil {
		return "", &FeedbackError{TaskID: taskID, Err: err}
	}

	fb.ID = uuid.NewString()
	fb.TaskID = taskID
	fb.DecisionID = latest.ID
	fb.CreatedAt = time.Now().UTC()

	if err := c.store.InsertFeedback(ctx, &fb); err != nil {
		return "", fmt.Errorf("insert feedback for task %s: %w", taskID, err)
	}

	if c.metrics != nil {
		c.metrics.FeedbackReceived.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("good_match", fb.WasGoodMatch),
		))
	}

	c.publish(ctx, &fb)
	return fb.ID, nil
}

// ListForTask returns all feedback ever submitted for a task, oldest first.
func (c *FeedbackCollector) ListForTask(ctx context.Context, taskID string) ([]decision.Feedback, error) {
	all, err := c.store.ListFeedback(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	var out []decision.Feedback
	for _, fb := range all {
		if fb.TaskID == taskID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (c *FeedbackCollector) publish(ctx context.Context, fb *decision.Feedback) {
	if c.queue == nil {
		return
	}
	payload := messagequeue.FeedbackReceivedPayload{
		FeedbackID:         fb.ID,
		DecisionID:         fb.DecisionID,
		TaskID:             fb.TaskID,
		WasGoodMatch:       fb.WasGoodMatch,
		QualityRating:      fb.QualityRating,
		ShouldHaveRoutedTo: fb.ShouldHaveRoutedTo,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("feedback: marshal event", "feedback_id", fb.ID, "error", err)
		return
	}
	if err := c.queue.Publish(ctx, messagequeue.SubjectFeedbackReceived, data); err != nil {
		slog.Warn("feedback: publish event", "feedback_id", fb.ID, "error", err)
	}
}
