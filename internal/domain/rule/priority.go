package rule

import (
	"fmt"

	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

func (r *Rule) validatePriority() error {
	if r.MinPriority < task.PriorityLow || r.MaxPriority > task.PriorityCritical {
		return &ConfigError{RuleID: r.ID, Reason: "priority out of range"}
	}
	if r.MinPriority > r.MaxPriority {
		return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("min priority %s exceeds max priority %s", r.MinPriority, r.MaxPriority)}
	}
	return nil
}

// evaluatePriority matches tasks whose priority falls inside the configured
// range. The score is 1.0 at the range center and decays linearly toward the
// boundaries; a boundary value still scores above zero so in-range tasks are
// never indistinguishable from out-of-range ones.
func (r *Rule) evaluatePriority(t *task.Task) MatchResult {
	p := float64(t.Priority)
	lo, hi := float64(r.MinPriority), float64(r.MaxPriority)
	if p < lo || p > hi {
		return MatchResult{Explanation: fmt.Sprintf("priority %s outside range [%s, %s]", t.Priority, r.MinPriority, r.MaxPriority)}
	}

	center := (lo + hi) / 2
	halfWidth := (hi - lo) / 2
	dist := p - center
	if dist < 0 {
		dist = -dist
	}
	score := 1.0 - dist/(halfWidth+1)

	return MatchResult{
		Matched:     true,
		Score:       clamp01(score),
		Explanation: fmt.Sprintf("priority %s in range [%s, %s]", t.Priority, r.MinPriority, r.MaxPriority),
	}
}
