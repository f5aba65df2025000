package rule

import (
	"fmt"
	"strings"

	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

func (r *Rule) validateComposite() error {
	switch r.Operator {
	case OpAnd, OpOr:
		if len(r.Children) == 0 {
			return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("%s composite requires at least one child", r.Operator)}
		}
	case OpNot:
		if len(r.Children) != 1 {
			return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("not composite requires exactly one child, got %d", len(r.Children))}
		}
	default:
		return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("invalid operator %q", r.Operator)}
	}
	return nil
}

// evaluateComposite combines child results:
//
//	and: matched when every child matched, score = min of child scores
//	or:  matched when any child matched, score = max of child scores
//	not: matched = !child.Matched, score = 1 - child.Score
//
// Child references were resolved during validation, so lookup cannot fail.
func (rs *RuleSet) evaluateComposite(r *Rule, t *task.Task) MatchResult {
	switch r.Operator {
	case OpNot:
		child := rs.Evaluate(r.Children[0], t)
		return MatchResult{
			Matched:     !child.Matched,
			Score:       clamp01(1 - child.Score),
			Explanation: fmt.Sprintf("not(%s)", child.Explanation),
		}

	case OpAnd:
		matched := true
		score := 1.0
		parts := make([]string, 0, len(r.Children))
		for _, id := range r.Children {
			res := rs.Evaluate(id, t)
			matched = matched && res.Matched
			if res.Score < score {
				score = res.Score
			}
			parts = append(parts, res.Explanation)
		}
		return MatchResult{
			Matched:     matched,
			Score:       clamp01(score),
			Explanation: fmt.Sprintf("and(%s)", strings.Join(parts, "; ")),
		}

	case OpOr:
		matched := false
		score := 0.0
		parts := make([]string, 0, len(r.Children))
		for _, id := range r.Children {
			res := rs.Evaluate(id, t)
			matched = matched || res.Matched
			if res.Score > score {
				score = res.Score
			}
			parts = append(parts, res.Explanation)
		}
		return MatchResult{
			Matched:     matched,
			Score:       clamp01(score),
			Explanation: fmt.Sprintf("or(%s)", strings.Join(parts, "; ")),
		}
	}

	return MatchResult{Explanation: fmt.Sprintf("invalid operator %q", r.Operator)}
}
