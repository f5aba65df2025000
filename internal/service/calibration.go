package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	tpotel "github.com/Strob0t/TaskPilot/internal/adapter/otel"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/port/cache"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
)

// Calibration thresholds. A destination is problematic when its
// feedback-weighted mean calibration error exceeds MaxMeanError over at least
// MinSamples feedback-linked decisions, or when it is systematically
// overconfident: observed good-match rate below OverconfidentFloor while mean
// predicted confidence is at or above OverconfidentConfidence.
const (
	MinSamples              = 5
	MaxMeanError            = 0.25
	OverconfidentFloor      = 0.40
	OverconfidentConfidence = 0.70

	// suggestionMinBad is the number of bad-match decisions a rule must
	// have contributed to before a weight reduction is suggested.
	suggestionMinBad = 3

	numBuckets = 10

	reportCacheKey = "calibration:report"
	// analyzeParallelism bounds concurrent per-destination analysis.
	analyzeParallelism = 4
)

// Calibrator computes calibration reports from recorded decision and
// feedback history. Reports are derived on demand over a point-in-time
// snapshot; analysis never mutates history, so cancellation is always safe.
type Calibrator struct {
	store    decisionstore.Store
	cache    cache.Cache
	cacheTTL time.Duration
	window   time.Duration // 0 = analyze full history
	metrics  *tpotel.Metrics
}

// NewCalibrator creates a Calibrator. The cache is optional; when present,
// Report serves cached reports for cacheTTL between analyses.
func NewCalibrator(store decisionstore.Store, c cache.Cache, cacheTTL time.Duration, opts ...CalibratorOption) *Calibrator {
	cal := &Calibrator{store: store, cache: c, cacheTTL: cacheTTL}
	for _, opt := range opts {
		opt(cal)
	}
	return cal
}

// CalibratorOption configures optional Calibrator behavior.
type CalibratorOption func(*Calibrator)

// WithCalibrationWindow restricts analysis to decisions recorded within the
// trailing window.
func WithCalibrationWindow(window time.Duration) CalibratorOption {
	return func(c *Calibrator) { c.window = window }
}

// WithCalibrationMetrics installs OTel metric instruments.
func WithCalibrationMetrics(m *tpotel.Metrics) CalibratorOption {
	return func(c *Calibrator) { c.metrics = m }
}

// Report returns the latest calibration report, recomputing it when the
// cached copy has expired.
func (c *Calibrator) Report(ctx context.Context) (*decision.CalibrationReport, error) {
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, reportCacheKey); err == nil && ok {
			var report decision.CalibrationReport
			if err := json.Unmarshal(data, &report); err == nil {
				return &report, nil
			}
		}
	}

	report, err := c.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := c.cache.Set(ctx, reportCacheKey, data, c.cacheTTL); err != nil {
				slog.Warn("calibration: cache report", "error", err)
			}
		}
	}
	return report, nil
}

// Invalidate drops the cached report, forcing the next Report call to
// recompute. Called after feedback arrives.
func (c *Calibrator) Invalidate(ctx context.Context) {
	if c.cache != nil {
		if err := c.cache.Delete(ctx, reportCacheKey); err != nil {
			slog.Warn("calibration: invalidate report cache", "error", err)
		}
	}
}

// Analyze buckets every recorded decision by predicted confidence, joins in
// feedback, and computes per-destination calibration. The context bounds the
// scan: cancellation aborts the analysis with the context's error.
func (c *Calibrator) Analyze(ctx context.Context) (*decision.CalibrationReport, error) {
	ctx, span := tpotel.StartAnalyzeSpan(ctx)
	defer span.End()

	start := time.Now()

	var since time.Time
	if c.window > 0 {
		since = time.Now().UTC().Add(-c.window)
	}
	decisions, err := c.store.QueryDecisions(ctx, decisionstore.Filter{Since: since})
	if err != nil {
		return nil, fmt.Errorf("calibration: load decisions: %w", err)
	}
	feedback, err := c.store.ListFeedback(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("calibration: load feedback: %w", err)
	}

	// First feedback per decision is the binding judgment; later records
	// for the same decision are corrections kept for audit only.
	byDecision := make(map[string]*decision.Feedback, len(feedback))
	for i := range feedback {
		fb := &feedback[i]
		if _, seen := byDecision[fb.DecisionID]; !seen {
			byDecision[fb.DecisionID] = fb
		}
	}

	byDest := make(map[string][]*decision.RoutingDecision)
	withFeedback := 0
	for i := range decisions {
		d := &decisions[i]
		if !d.Routed() {
			continue
		}
		byDest[d.Destination] = append(byDest[d.Destination], d)
		if _, ok := byDecision[d.ID]; ok {
			withFeedback++
		}
	}

	names := make([]string, 0, len(byDest))
	for name := range byDest {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &decision.CalibrationReport{
		GeneratedAt:  time.Now().UTC(),
		Decisions:    len(decisions),
		WithFeedback: withFeedback,
		Destinations: make([]decision.DestinationCalibration, len(names)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyzeParallelism)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Destinations[i] = calibrateDestination(name, byDest[name], byDecision)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	for _, dc := range report.Destinations {
		if dc.Problematic {
			report.Problematic = append(report.Problematic, dc.Destination)
		}
	}
	report.Suggestions = suggestAdjustments(decisions, byDecision)

	if c.metrics != nil {
		c.metrics.AnalyzeDuration.Record(ctx, time.Since(start).Seconds())
	}
	return report, nil
}

// calibrateDestination computes one destination's confidence-decile buckets
// and problem flags from its decisions and their linked feedback.
func calibrateDestination(name string, decisions []*decision.RoutingDecision, byDecision map[string]*decision.Feedback) decision.DestinationCalibration {
	dc := decision.DestinationCalibration{
		Destination: name,
		Decisions:   len(decisions),
		Buckets:     make([]decision.Bucket, numBuckets),
	}
	for i := range dc.Buckets {
		dc.Buckets[i].Low = float64(i) / numBuckets
		dc.Buckets[i].High = float64(i+1) / numBuckets
	}

	type bucketAcc struct {
		predSum float64
		good    int
		total   int
	}
	acc := make([]bucketAcc, numBuckets)

	var confSum float64
	goodTotal := 0
	for _, d := range decisions {
		b := bucketIndex(d.Confidence)
		dc.Buckets[b].Count++
		confSum += d.Confidence

		fb, ok := byDecision[d.ID]
		if !ok {
			continue
		}
		dc.WithFeedback++
		acc[b].total++
		acc[b].predSum += d.Confidence
		if fb.WasGoodMatch {
			acc[b].good++
			goodTotal++
		}
	}

	var errSum float64
	for i := range dc.Buckets {
		a := acc[i]
		dc.Buckets[i].WithFeedback = a.total
		if a.total == 0 {
			continue
		}
		meanPred := a.predSum / float64(a.total)
		observed := float64(a.good) / float64(a.total)
		dc.Buckets[i].MeanPredicted = meanPred
		dc.Buckets[i].ObservedGoodRate = observed
		e := meanPred - observed
		if e < 0 {
			e = -e
		}
		dc.Buckets[i].Error = e
		errSum += e * float64(a.total)
	}

	if len(decisions) > 0 {
		dc.MeanConfidence = confSum / float64(len(decisions))
	}
	if dc.WithFeedback > 0 {
		dc.ObservedGoodRate = float64(goodTotal) / float64(dc.WithFeedback)
		dc.MeanError = errSum / float64(dc.WithFeedback)
	}

	if dc.WithFeedback >= MinSamples {
		dc.Overconfident = dc.ObservedGoodRate < OverconfidentFloor && dc.MeanConfidence >= OverconfidentConfidence
		dc.Problematic = dc.MeanError > MaxMeanError || dc.Overconfident
	}
	return dc
}

func bucketIndex(confidence float64) int {
	b := int(confidence * numBuckets)
	if b >= numBuckets {
		b = numBuckets - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

// suggestAdjustments derives rule-weight suggestions from the rules that
// contributed to decisions later judged bad matches.
func suggestAdjustments(decisions []decision.RoutingDecision, byDecision map[string]*decision.Feedback) []decision.Suggestion {
	type key struct{ ruleID, dest string }
	badCounts := make(map[key]int)
	for i := range decisions {
		d := &decisions[i]
		fb, ok := byDecision[d.ID]
		if !ok || fb.WasGoodMatch || !d.Routed() {
			continue
		}
		for _, id := range d.RuleIDs {
			badCounts[key{id, d.Destination}]++
		}
	}

	var out []decision.Suggestion
	for k, n := range badCounts {
		if n < suggestionMinBad {
			continue
		}
		out = append(out, decision.Suggestion{
			RuleID:      k.ruleID,
			Destination: k.dest,
			BadCount:    n,
			Text:        fmt.Sprintf("reduce weight of rule %s for destination %s: contributed to %d decisions marked as bad matches", k.ruleID, k.dest, n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BadCount != out[j].BadCount {
			return out[i].BadCount > out[j].BadCount
		}
		if out[i].Destination != out[j].Destination {
			return out[i].Destination < out[j].Destination
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}
