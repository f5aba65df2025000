// Package rule defines TaskPilot's routing rule model: four rule variants
// (keyword, tag, priority, composite) held in an immutable, validated
// RuleSet and evaluated against tasks to produce scored match results.
package rule

import (
	"fmt"
	"regexp"

	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

// Kind discriminates the rule variants.
type Kind string

const (
	KindKeyword   Kind = "keyword"
	KindTag       Kind = "tag"
	KindPriority  Kind = "priority"
	KindComposite Kind = "composite"
)

// MatchMode controls how keyword rules compare keywords against text.
type MatchMode string

const (
	// ModeExact matches a keyword as a case-sensitive substring.
	ModeExact MatchMode = "exact"
	// ModeWord matches a keyword as a case-insensitive whole word.
	ModeWord MatchMode = "word"
	// ModeFuzzy matches a keyword against words within a bounded edit
	// distance (see fuzzyDistanceFor).
	ModeFuzzy MatchMode = "fuzzy"
)

// Operator is the boolean combinator of a composite rule.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
	OpNot Operator = "not"
)

// MaxWeight is the upper bound for rule and keyword weights.
const MaxWeight = 2.0

// Keyword is a single weighted keyword of a keyword rule.
type Keyword struct {
	Text   string
	Weight float64
}

// Rule is one routing rule. Exactly one variant's parameter group is
// populated, selected by Kind. Rules are immutable once their RuleSet has
// been validated.
type Rule struct {
	ID          string
	Kind        Kind
	Destination string // destination this rule scores for; empty for pure building blocks
	Weight      float64

	// Keyword variant.
	Keywords []Keyword
	Mode     MatchMode

	// Tag variant.
	RequiredTags   []string
	OptionalTags   []string
	TagPatterns    []string
	RequiredWeight float64
	OptionalWeight float64
	patterns       []*regexp.Regexp // compiled during validation

	// Priority variant.
	MinPriority task.Priority
	MaxPriority task.Priority

	// Composite variant.
	Operator Operator
	Children []string

	index int // declaration order, used for deterministic tie-breaking
}

// Index returns the rule's declaration position within its RuleSet.
// Earlier-declared rules win ties during ranking.
func (r *Rule) Index() int {
	return r.index
}

// MatchResult is the outcome of evaluating one rule against one task.
type MatchResult struct {
	Matched     bool    `json:"matched"`
	Score       float64 `json:"score"` // always in [0,1]
	Explanation string  `json:"explanation"`
}

// ConfigError describes a rule-set validation failure. Loads are atomic:
// any ConfigError rejects the entire rule set.
type ConfigError struct {
	RuleID string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.RuleID == "" {
		return "ruleset: " + e.Reason
	}
	return fmt.Sprintf("ruleset: rule %q: %s", e.RuleID, e.Reason)
}

// clamp01 bounds a score to [0,1].
func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// validate checks the variant-independent and variant-specific invariants of
// a single rule. Cross-rule checks (unique ids, child references, cycles,
// destination references) live in RuleSet validation.
func (r *Rule) validate() error {
	if r.ID == "" {
		return &ConfigError{Reason: "rule id is required"}
	}
	if r.Weight < 0 || r.Weight > MaxWeight {
		return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("weight %.2f out of range [0,%.0f]", r.Weight, MaxWeight)}
	}
	switch r.Kind {
	case KindKeyword:
		return r.validateKeyword()
	case KindTag:
		return r.validateTag()
	case KindPriority:
		return r.validatePriority()
	case KindComposite:
		return r.validateComposite()
	}
	return &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("unknown rule type %q", r.Kind)}
}
