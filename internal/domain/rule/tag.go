package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

// Default weighting for required vs optional tags when the config leaves
// them unset: required tags count double.
const (
	defaultRequiredWeight = 2.0
	defaultOptionalWeight = 1.0
)

func (r *Rule) validateTag() error {
	if len(r.RequiredTags) == 0 && len(r.OptionalTags) == 0 && len(r.TagPatterns) == 0 {
		return &ConfigError{RuleID: r.ID, Reason: "tag rule requires at least one required tag, optional tag, or pattern"}
	}
	if r.RequiredWeight < 0 || r.OptionalWeight < 0 {
		return &ConfigError{RuleID: r.ID, Reason: "tag weights must be >= 0"}
	}
	r.patterns = r.patterns[:0]
	for _, p := range r.TagPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("invalid tag pattern %q: %v", p, err)}
		}
		r.patterns = append(r.patterns, re)
	}
	return nil
}

// evaluateTag scores the overlap between the task's tags and the rule's
// required/optional tag sets. Patterns count toward the optional side.
// Matched requires every required tag present, plus at least one optional or
// pattern hit when any are configured.
func (r *Rule) evaluateTag(t *task.Task) MatchResult {
	reqW := r.RequiredWeight
	if reqW == 0 {
		reqW = defaultRequiredWeight
	}
	optW := r.OptionalWeight
	if optW == 0 {
		optW = defaultOptionalWeight
	}

	var requiredHits []string
	for _, tag := range r.RequiredTags {
		if t.HasTag(tag) {
			requiredHits = append(requiredHits, tag)
		}
	}
	allRequired := len(requiredHits) == len(r.RequiredTags)

	var optionalHits []string
	for _, tag := range r.OptionalTags {
		if t.HasTag(tag) {
			optionalHits = append(optionalHits, tag)
		}
	}
	for i, re := range r.patterns {
		for _, tag := range t.Tags {
			if re.MatchString(tag) {
				optionalHits = append(optionalHits, tag+"~"+r.TagPatterns[i])
				break
			}
		}
	}

	totalOptional := len(r.OptionalTags) + len(r.TagPatterns)
	matched := allRequired
	if matched && totalOptional > 0 {
		matched = len(optionalHits) > 0
	}

	denom := reqW*float64(len(r.RequiredTags)) + optW*float64(totalOptional)
	if denom == 0 {
		return MatchResult{Explanation: "tag rule has no configured tags"}
	}
	score := clamp01((reqW*float64(len(requiredHits)) + optW*float64(len(optionalHits))) / denom)

	if !matched {
		missing := len(r.RequiredTags) - len(requiredHits)
		if missing > 0 {
			return MatchResult{Score: score, Explanation: fmt.Sprintf("%d required tag(s) missing", missing)}
		}
		return MatchResult{Score: score, Explanation: "no optional tag or pattern matched"}
	}

	hits := append(requiredHits, optionalHits...)
	return MatchResult{
		Matched:     true,
		Score:       score,
		Explanation: fmt.Sprintf("tags matched: %s", strings.Join(hits, ", ")),
	}
}
