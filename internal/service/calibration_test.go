package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Strob0t/TaskPilot/internal/adapter/memory"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
)

// seedDecisions inserts n routed decisions for one destination at a fixed
// confidence, attaching feedback per the good slice (nil entry = no feedback).
func seedDecisions(t *testing.T, store *memory.Store, dest string, confidence float64, good []*bool, ruleIDs []string) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i, g := range good {
		d := &decision.RoutingDecision{
			ID:          fmt.Sprintf("%s-d%d", dest, i),
			TaskID:      fmt.Sprintf("%s-t%d", dest, i),
			Destination: dest,
			Confidence:  confidence,
			Strategy:    decision.StrategyRules,
			RuleIDs:     ruleIDs,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.InsertDecision(ctx, d); err != nil {
			t.Fatal(err)
		}
		if g == nil {
			continue
		}
		fb := &decision.Feedback{
			ID:           fmt.Sprintf("%s-f%d", dest, i),
			TaskID:       d.TaskID,
			DecisionID:   d.ID,
			WasGoodMatch: *g,
			CreatedAt:    d.CreatedAt.Add(time.Minute),
		}
		if err := store.InsertFeedback(ctx, fb); err != nil {
			t.Fatal(err)
		}
	}
}

func judgments(good, bad int) []*bool {
	yes, no := true, false
	out := make([]*bool, 0, good+bad)
	for range good {
		out = append(out, &yes)
	}
	for range bad {
		out = append(out, &no)
	}
	return out
}

func TestAnalyzeEmptyStore(t *testing.T) {
	cal := NewCalibrator(memory.NewStore(), nil, 0)

	report, err := cal.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Decisions != 0 || report.WithFeedback != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if len(report.Problematic) != 0 || len(report.Suggestions) != 0 {
		t.Errorf("empty history must not flag anything: %+v", report)
	}
}

func TestAnalyzeOverconfidentDestination(t *testing.T) {
	store := memory.NewStore()
	// Ten decisions at 0.9 confidence, every one judged a bad match.
	seedDecisions(t, store, "ops", 0.9, judgments(0, 10), []string{"ops-kw"})
	cal := NewCalibrator(store, nil, 0)

	report, err := cal.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if report.Decisions != 10 || report.WithFeedback != 10 {
		t.Fatalf("report counts = %d/%d, want 10/10", report.Decisions, report.WithFeedback)
	}
	if len(report.Destinations) != 1 {
		t.Fatalf("destinations = %d, want 1", len(report.Destinations))
	}
	dc := report.Destinations[0]
	if dc.Destination != "ops" {
		t.Fatalf("destination = %q", dc.Destination)
	}
	if !almostEqual(dc.MeanConfidence, 0.9) {
		t.Errorf("mean confidence = %v, want 0.9", dc.MeanConfidence)
	}
	if dc.ObservedGoodRate != 0 {
		t.Errorf("observed good rate = %v, want 0", dc.ObservedGoodRate)
	}
	if !almostEqual(dc.MeanError, 0.9) {
		t.Errorf("mean error = %v, want 0.9", dc.MeanError)
	}
	if !dc.Overconfident || !dc.Problematic {
		t.Errorf("flags = overconfident %v problematic %v, want both", dc.Overconfident, dc.Problematic)
	}
	if len(report.Problematic) != 1 || report.Problematic[0] != "ops" {
		t.Errorf("problematic = %v, want [ops]", report.Problematic)
	}

	// The decile holding 0.9 carries every sample.
	b := dc.Buckets[9]
	if b.Count != 10 || b.WithFeedback != 10 {
		t.Errorf("bucket 9 = %+v", b)
	}
	if !almostEqual(b.Error, 0.9) {
		t.Errorf("bucket error = %v, want 0.9", b.Error)
	}

	// Every bad decision named the same rule: weight reduction suggested.
	if len(report.Suggestions) != 1 {
		t.Fatalf("suggestions = %+v, want one", report.Suggestions)
	}
	s := report.Suggestions[0]
	if s.RuleID != "ops-kw" || s.Destination != "ops" || s.BadCount != 10 {
		t.Errorf("suggestion = %+v", s)
	}
}

func TestAnalyzeWellCalibrated(t *testing.T) {
	store := memory.NewStore()
	// 0.82 predicted, 4/5 observed good: error well under the threshold.
	seedDecisions(t, store, "ops", 0.82, judgments(4, 1), []string{"ops-kw"})
	cal := NewCalibrator(store, nil, 0)

	report, err := cal.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	dc := report.Destinations[0]
	if dc.Problematic || dc.Overconfident {
		t.Errorf("well-calibrated destination flagged: %+v", dc)
	}
	if !almostEqual(dc.MeanError, 0.02) {
		t.Errorf("mean error = %v, want 0.02", dc.MeanError)
	}
	// One bad judgment is below the suggestion threshold.
	if len(report.Suggestions) != 0 {
		t.Errorf("suggestions = %+v, want none", report.Suggestions)
	}
}

func TestAnalyzeBelowMinSamples(t *testing.T) {
	store := memory.NewStore()
	// Badly calibrated, but with too little feedback to judge.
	seedDecisions(t, store, "ops", 0.9, judgments(0, MinSamples-1), nil)
	cal := NewCalibrator(store, nil, 0)

	report, err := cal.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if dc := report.Destinations[0]; dc.Problematic {
		t.Errorf("destination flagged below MinSamples: %+v", dc)
	}
}

func TestAnalyzeFirstFeedbackBinds(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	d := &decision.RoutingDecision{
		ID: "d1", TaskID: "t1", Destination: "ops",
		Confidence: 0.8, Strategy: decision.StrategyRules,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.InsertDecision(ctx, d); err != nil {
		t.Fatal(err)
	}
	// First judgment good, later correction bad: the first one binds.
	for i, good := range []bool{true, false} {
		fb := &decision.Feedback{
			ID: fmt.Sprintf("f%d", i), TaskID: "t1", DecisionID: "d1",
			WasGoodMatch: good,
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		if err := store.InsertFeedback(ctx, fb); err != nil {
			t.Fatal(err)
		}
	}

	report, err := NewCalibrator(store, nil, 0).Analyze(ctx)
	if err != nil {
		t.Fatal(err)
	}
	dc := report.Destinations[0]
	if dc.WithFeedback != 1 {
		t.Fatalf("with feedback = %d, want 1", dc.WithFeedback)
	}
	if dc.ObservedGoodRate != 1.0 {
		t.Errorf("observed good rate = %v, want 1.0 (first judgment)", dc.ObservedGoodRate)
	}
}

func TestAnalyzeSkipsUnrouted(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	unrouted := &decision.RoutingDecision{
		ID: "d1", TaskID: "t1", Strategy: decision.StrategyUnrouted,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.InsertDecision(ctx, unrouted); err != nil {
		t.Fatal(err)
	}

	report, err := NewCalibrator(store, nil, 0).Analyze(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Decisions != 1 {
		t.Errorf("decisions = %d, want 1 (unrouted still counted)", report.Decisions)
	}
	if len(report.Destinations) != 0 {
		t.Errorf("unrouted decisions must not produce destination entries: %+v", report.Destinations)
	}
}

func TestAnalyzeWindow(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for i, age := range []time.Duration{48 * time.Hour, time.Minute} {
		d := &decision.RoutingDecision{
			ID: fmt.Sprintf("d%d", i), TaskID: fmt.Sprintf("t%d", i),
			Destination: "ops", Confidence: 0.8, Strategy: decision.StrategyRules,
			CreatedAt: time.Now().UTC().Add(-age),
		}
		if err := store.InsertDecision(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	cal := NewCalibrator(store, nil, 0, WithCalibrationWindow(24*time.Hour))
	report, err := cal.Analyze(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Decisions != 1 {
		t.Errorf("decisions = %d, want only the in-window one", report.Decisions)
	}
}

func TestReportCaching(t *testing.T) {
	store := memory.NewStore()
	cache := newFakeCache()
	cal := NewCalibrator(store, cache, time.Minute)
	ctx := context.Background()

	seedDecisions(t, store, "ops", 0.9, judgments(1, 0), nil)
	first, err := cal.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Decisions != 1 {
		t.Fatalf("decisions = %d, want 1", first.Decisions)
	}

	// New history arrives but the cached report still serves.
	seedDecisions(t, store, "frontend", 0.7, judgments(1, 0), nil)
	cached, err := cal.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cached.Decisions != 1 {
		t.Errorf("decisions = %d, want stale cached value 1", cached.Decisions)
	}

	// Invalidation forces a recompute on the next call.
	cal.Invalidate(ctx)
	fresh, err := cal.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Decisions != 2 {
		t.Errorf("decisions = %d, want 2 after invalidation", fresh.Decisions)
	}
}

func TestAnalyzeStoreFailure(t *testing.T) {
	cal := NewCalibrator(&failingStore{err: errStoreDown}, nil, 0)
	if _, err := cal.Analyze(context.Background()); err == nil {
		t.Error("expected error")
	}
}
