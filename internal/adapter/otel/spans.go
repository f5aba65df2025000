package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskpilot"

// StartDecideSpan starts a span for one routing decision.
func StartDecideSpan(ctx context.Context, taskID string, candidates int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decide",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.Int("candidates", candidates),
		),
	)
}

// StartAnalyzeSpan starts a span for a calibration analysis run.
func StartAnalyzeSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "calibration.analyze")
}

// StartReloadSpan starts a span for a rule set reload.
func StartReloadSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rules.reload")
}
