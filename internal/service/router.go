// Package service wires the routing engine's use cases: deciding routes,
// recording decisions, collecting feedback, and calibration analysis.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	tpotel "github.com/Strob0t/TaskPilot/internal/adapter/otel"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/domain/destination"
	"github.com/Strob0t/TaskPilot/internal/domain/rule"
	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

// maxReasoningRules caps how many contributing rules the reasoning text names.
const maxReasoningRules = 3

// CapabilityResolver answers whether a destination provides a capability that
// is not in its declared set. Resolvers may consult external systems and can
// fail; a failing lookup downgrades the destination with a warning instead of
// failing the decision.
type CapabilityResolver func(ctx context.Context, dest, capability string) (bool, error)

// Router evaluates the active RuleSet against tasks and produces
// confidence-scored routing decisions. Decide and Suggest are pure with
// respect to recorded state and safe for unbounded concurrent use; the
// RuleSet is replaced wholesale via an atomic swap on reload.
type Router struct {
	rules    atomic.Pointer[rule.RuleSet]
	resolver CapabilityResolver
	metrics  *tpotel.Metrics
}

// NewRouter creates a Router serving the given rule set.
func NewRouter(rs *rule.RuleSet, opts ...RouterOption) *Router {
	r := &Router{}
	r.rules.Store(rs)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RouterOption configures optional Router collaborators.
type RouterOption func(*Router)

// WithCapabilityResolver installs an external capability lookup.
func WithCapabilityResolver(res CapabilityResolver) RouterOption {
	return func(r *Router) { r.resolver = res }
}

// WithMetrics installs OTel metric instruments.
func WithMetrics(m *tpotel.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// RuleSet returns the currently active rule set snapshot.
func (r *Router) RuleSet() *rule.RuleSet {
	return r.rules.Load()
}

// Reload parses and validates a new rule definition and installs it
// atomically. On failure the previously active rule set keeps serving.
func (r *Router) Reload(data []byte) error {
	rs, err := rule.Load(data)
	if err != nil {
		return err
	}
	r.rules.Store(rs)
	slog.Info("rule set reloaded",
		"rules", rs.Len(),
		"destinations", len(rs.Destinations()),
		"default", rs.DefaultDestination(),
	)
	return nil
}

// Swap installs an already-validated rule set.
func (r *Router) Swap(rs *rule.RuleSet) {
	r.rules.Store(rs)
}

// Decide routes a task to the best-matching candidate destination. When the
// candidates slice is empty, the rule set's declared destination catalog is
// used. Decide never returns an error: evaluation-time problems are absorbed
// into the decision's reasoning as warnings, and a task no rule matches
// yields either the configured default (at the nominal fallback confidence)
// or an unrouted decision.
func (r *Router) Decide(ctx context.Context, t *task.Task, candidates []destination.Destination) *decision.RoutingDecision {
	start := time.Now()
	rs := r.rules.Load()
	if len(candidates) == 0 {
		candidates = rs.Destinations()
	}

	ctx, span := tpotel.StartDecideSpan(ctx, t.ID, len(candidates))
	defer span.End()

	d := r.decide(ctx, rs, t, candidates)
	d.CreatedAt = time.Now().UTC()
	d.Latency = time.Since(start)

	if r.metrics != nil {
		r.metrics.Decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("strategy", string(d.Strategy)),
		))
		if d.Strategy == decision.StrategyUnrouted {
			r.metrics.Unrouted.Add(ctx, 1)
		}
		r.metrics.Confidence.Record(ctx, d.Confidence)
		r.metrics.DecideDuration.Record(ctx, time.Since(start).Seconds())
	}
	return d
}

func (r *Router) decide(ctx context.Context, rs *rule.RuleSet, t *task.Task, candidates []destination.Destination) *decision.RoutingDecision {
	// Explicit assignment short-circuits rule evaluation entirely.
	var warnings []string
	if t.Destination != "" {
		for i := range candidates {
			if candidates[i].Name == t.Destination {
				return &decision.RoutingDecision{
					TaskID:      t.ID,
					Destination: t.Destination,
					Confidence:  1.0,
					Strategy:    decision.StrategyExplicit,
					Reasoning:   "explicit assignment",
				}
			}
		}
		warnings = append(warnings, fmt.Sprintf("warning: explicit destination %q is not a candidate, falling back to rules", t.Destination))
	}

	scores := r.scoreAll(ctx, rs, t, candidates)
	rankScores(scores)

	// Evaluation-time failures disqualify their destination but must still
	// surface on the decision, whichever destination (or fallback) wins.
	for _, s := range scores {
		warnings = append(warnings, s.warnings...)
	}

	if len(scores) == 0 || scores[0].confidence == 0 {
		return r.zeroMatchDecision(rs, t, candidates, warnings)
	}

	top := scores[0]
	d := &decision.RoutingDecision{
		TaskID:      t.ID,
		Destination: top.dest.Name,
		Confidence:  top.confidence,
		Strategy:    decision.StrategyRules,
	}
	for _, o := range top.matched {
		d.RuleIDs = append(d.RuleIDs, o.r.ID)
	}
	for _, s := range scores[1:] {
		if s.confidence == 0 {
			break
		}
		d.Alternatives = append(d.Alternatives, decision.Alternative{
			Destination: s.dest.Name,
			Confidence:  round4(s.confidence),
			Reasoning:   s.summary(),
		})
	}
	d.Reasoning = buildReasoning(top, scores[1:], warnings)
	return d
}

// zeroMatchDecision handles the no-rule-matched boundary: fall back to the
// configured default at the nominal confidence, or return an unrouted
// decision when no default exists.
func (r *Router) zeroMatchDecision(rs *rule.RuleSet, t *task.Task, candidates []destination.Destination, warnings []string) *decision.RoutingDecision {
	if def := rs.DefaultDestination(); def != "" {
		for i := range candidates {
			if candidates[i].Name == def {
				return &decision.RoutingDecision{
					TaskID:      t.ID,
					Destination: def,
					Confidence:  decision.FallbackConfidence,
					Strategy:    decision.StrategyFallback,
					Reasoning:   joinReasoning("fallback to default", warnings),
				}
			}
		}
		warnings = append(warnings, fmt.Sprintf("warning: default destination %q is not a candidate", def))
	}
	return &decision.RoutingDecision{
		TaskID:    t.ID,
		Strategy:  decision.StrategyUnrouted,
		Reasoning: joinReasoning("no matching rule", warnings),
	}
}

// Suggest returns the top-n ranked destinations for a task without selecting
// a winner. It shares Decide's scoring and tie-breaking exactly.
func (r *Router) Suggest(ctx context.Context, t *task.Task, candidates []destination.Destination, n int) []decision.Alternative {
	rs := r.rules.Load()
	if len(candidates) == 0 {
		candidates = rs.Destinations()
	}
	scores := r.scoreAll(ctx, rs, t, candidates)
	rankScores(scores)

	if n <= 0 || n > len(scores) {
		n = len(scores)
	}
	out := make([]decision.Alternative, 0, n)
	for _, s := range scores[:n] {
		out = append(out, decision.Alternative{
			Destination: s.dest.Name,
			Confidence:  round4(s.confidence),
			Reasoning:   s.summary(),
		})
	}
	return out
}

// RouteAndRecord decides a route and immediately records the outcome.
// Callers that want decide-only semantics call Decide and record explicitly.
func RouteAndRecord(ctx context.Context, router *Router, rec *Recorder, t *task.Task, candidates []destination.Destination) (*decision.RoutingDecision, error) {
	d := router.Decide(ctx, t, candidates)
	if _, err := rec.Record(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// --- scoring ---

type ruleOutcome struct {
	r   *rule.Rule
	res rule.MatchResult
}

type destScore struct {
	dest       *destination.Destination
	confidence float64
	matched    []ruleOutcome
	warnings   []string

	// topIndex is the declaration index of the highest-weighted matched
	// rule; it drives the deterministic tie-break (earliest declared wins).
	topIndex int
}

func (r *Router) scoreAll(ctx context.Context, rs *rule.RuleSet, t *task.Task, candidates []destination.Destination) []*destScore {
	scores := make([]*destScore, 0, len(candidates))
	for i := range candidates {
		scores = append(scores, r.scoreDestination(ctx, rs, t, &candidates[i]))
	}
	return scores
}

// scoreDestination aggregates all rules configured for one destination into a
// single confidence. Unmatched rules contribute nothing to the numerator but
// stay in the denominator, penalizing destinations whose rules mostly fail.
func (r *Router) scoreDestination(ctx context.Context, rs *rule.RuleSet, t *task.Task, dest *destination.Destination) *destScore {
	ds := &destScore{dest: dest, topIndex: math.MaxInt}

	for _, capName := range t.Capabilities {
		ok, warning := r.hasCapability(ctx, dest, capName)
		if warning != "" {
			ds.warnings = append(ds.warnings, warning)
		}
		if !ok {
			ds.warnings = append(ds.warnings, fmt.Sprintf("%s lacks capability %q", dest.Name, capName))
			return ds
		}
	}

	rules := rs.RulesFor(dest.Name)
	if len(rules) == 0 {
		return ds
	}

	var num, den float64
	topWeight := -1.0
	for _, rl := range rules {
		den += rl.Weight
		res := rs.Evaluate(rl.ID, t)
		if !res.Matched {
			continue
		}
		num += rl.Weight * res.Score
		ds.matched = append(ds.matched, ruleOutcome{r: rl, res: res})
		if rl.Weight > topWeight || (rl.Weight == topWeight && rl.Index() < ds.topIndex) {
			topWeight = rl.Weight
			ds.topIndex = rl.Index()
		}
	}
	if len(ds.matched) == 0 || den == 0 {
		return ds
	}

	confidence := num / den
	if boost := dest.Boost(t); boost != 1.0 {
		confidence *= boost
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	ds.confidence = confidence
	return ds
}

func (r *Router) hasCapability(ctx context.Context, dest *destination.Destination, cap string) (bool, string) {
	if dest.HasCapability(cap) {
		return true, ""
	}
	if r.resolver == nil {
		return false, ""
	}
	ok, err := r.resolver(ctx, dest.Name, cap)
	if err != nil {
		// MatchError policy: absorb the failure, annotate, score zero.
		return false, fmt.Sprintf("warning: capability lookup %q for %s failed: %v", cap, dest.Name, err)
	}
	return ok, ""
}

// rankScores orders destinations best-first: confidence descending, then the
// earliest-declared top contributing rule, then destination name.
func rankScores(scores []*destScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.topIndex != b.topIndex {
			return a.topIndex < b.topIndex
		}
		return a.dest.Name < b.dest.Name
	})
}

// summary names up to maxReasoningRules contributing rules for one
// destination, highest weight first.
func (ds *destScore) summary() string {
	if len(ds.matched) == 0 {
		return "no rule matched"
	}
	outcomes := make([]ruleOutcome, len(ds.matched))
	copy(outcomes, ds.matched)
	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].r.Weight != outcomes[j].r.Weight {
			return outcomes[i].r.Weight > outcomes[j].r.Weight
		}
		return outcomes[i].r.Index() < outcomes[j].r.Index()
	})
	if len(outcomes) > maxReasoningRules {
		outcomes = outcomes[:maxReasoningRules]
	}
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("rule %s (score %.2f, weight %.1f): %s", o.r.ID, o.res.Score, o.r.Weight, o.res.Explanation))
	}
	return strings.Join(parts, "; ")
}

func buildReasoning(top *destScore, rest []*destScore, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "routed to %s (confidence %.2f): %s", top.dest.Name, top.confidence, top.summary())
	if len(rest) > 0 && rest[0].confidence > 0 {
		fmt.Fprintf(&b, ". runner-up: %s (%.2f)", rest[0].dest.Name, rest[0].confidence)
	}
	for _, w := range warnings {
		b.WriteString(". ")
		b.WriteString(w)
	}
	return b.String()
}

func joinReasoning(base string, warnings []string) string {
	if len(warnings) == 0 {
		return base
	}
	return base + ". " + strings.Join(warnings, ". ")
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
