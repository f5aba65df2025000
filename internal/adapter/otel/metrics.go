package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskpilot"

// Metrics holds all TaskPilot metric instruments.
type Metrics struct {
	Decisions        metric.Int64Counter
	Unrouted         metric.Int64Counter
	FeedbackReceived metric.Int64Counter
	Confidence       metric.Float64Histogram
	DecideDuration   metric.Float64Histogram
	AnalyzeDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Decisions, err = meter.Int64Counter("taskpilot.decisions",
		metric.WithDescription("Number of routing decisions, by strategy"))
	if err != nil {
		return nil, err
	}

	m.Unrouted, err = meter.Int64Counter("taskpilot.decisions.unrouted",
		metric.WithDescription("Number of decisions that could not be routed"))
	if err != nil {
		return nil, err
	}

	m.FeedbackReceived, err = meter.Int64Counter("taskpilot.feedback.received",
		metric.WithDescription("Number of feedback records collected"))
	if err != nil {
		return nil, err
	}

	m.Confidence, err = meter.Float64Histogram("taskpilot.decision.confidence",
		metric.WithDescription("Predicted confidence of routing decisions"))
	if err != nil {
		return nil, err
	}

	m.DecideDuration, err = meter.Float64Histogram("taskpilot.decide.duration_seconds",
		metric.WithDescription("Decide call duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.AnalyzeDuration, err = meter.Float64Histogram("taskpilot.analyze.duration_seconds",
		metric.WithDescription("Calibration analysis duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
