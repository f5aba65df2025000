// Package decision defines the routing decision, feedback, and calibration
// report domain models.
package decision

import "time"

// Strategy tags how a decision was reached.
type Strategy string

const (
	// StrategyRules means the decision came from rule evaluation.
	StrategyRules Strategy = "rules"
	// StrategyExplicit means the task carried an explicit assignment.
	StrategyExplicit Strategy = "explicit"
	// StrategyFallback means no rule matched and the configured default
	// destination was chosen.
	StrategyFallback Strategy = "fallback"
	// StrategyUnrouted means no rule matched and no default exists.
	StrategyUnrouted Strategy = "unrouted"
)

// FallbackConfidence is the nominal confidence assigned when routing falls
// back to the configured default destination because no rule matched.
const FallbackConfidence = 0.5

// Alternative is a ranked runner-up destination with its score.
type Alternative struct {
	Destination string  `json:"destination"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// RoutingDecision is one immutable routing outcome for a task. A re-route
// produces a new decision; recorded decisions are never mutated or deleted.
type RoutingDecision struct {
	ID           string        `json:"id"`
	TaskID       string        `json:"task_id"`
	Destination  string        `json:"destination,omitempty"` // empty = unrouted
	Confidence   float64       `json:"confidence"`
	Strategy     Strategy      `json:"strategy"`
	Reasoning    string        `json:"reasoning"`
	RuleIDs      []string      `json:"rule_ids,omitempty"` // matched rules that contributed to the chosen destination
	Alternatives []Alternative `json:"alternatives,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Latency      time.Duration `json:"latency"`
}

// Routed reports whether the decision selected a destination.
func (d *RoutingDecision) Routed() bool {
	return d.Destination != ""
}
