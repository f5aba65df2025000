package rule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Strob0t/TaskPilot/internal/domain/destination"
	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

// RuleSet is a validated, immutable collection of rules plus the destination
// catalog they reference. Build a RuleSet with New (or the loader); never
// mutate one in place — reloads construct a fresh RuleSet and swap it in
// atomically.
type RuleSet struct {
	rules        map[string]*Rule
	order        []*Rule // declaration order
	byDest       map[string][]*Rule
	destinations []destination.Destination
	destIndex    map[string]*destination.Destination
	defaultDest  string
}

// New validates the given rules against the destination catalog and builds a
// RuleSet. Validation is atomic: any failure returns a *ConfigError and no
// RuleSet.
func New(rules []Rule, destinations []destination.Destination, defaultDest string) (*RuleSet, error) {
	rs := &RuleSet{
		rules:        make(map[string]*Rule, len(rules)),
		order:        make([]*Rule, 0, len(rules)),
		byDest:       make(map[string][]*Rule),
		destinations: destinations,
		destIndex:    make(map[string]*destination.Destination, len(destinations)),
		defaultDest:  defaultDest,
	}

	for i := range destinations {
		d := &destinations[i]
		if d.Name == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("destination[%d]: name is required", i)}
		}
		if _, dup := rs.destIndex[d.Name]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate destination %q", d.Name)}
		}
		rs.destIndex[d.Name] = d
	}

	if defaultDest != "" {
		if _, ok := rs.destIndex[defaultDest]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("default destination %q is not declared", defaultDest)}
		}
	}

	for i := range rules {
		r := &rules[i]
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := rs.rules[r.ID]; dup {
			return nil, &ConfigError{RuleID: r.ID, Reason: "duplicate rule id"}
		}
		if r.Destination != "" {
			if _, ok := rs.destIndex[r.Destination]; !ok {
				return nil, &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("unknown destination %q", r.Destination)}
			}
		}
		r.index = i
		rs.rules[r.ID] = r
		rs.order = append(rs.order, r)
	}

	for _, r := range rs.order {
		for _, child := range r.Children {
			if _, ok := rs.rules[child]; !ok {
				return nil, &ConfigError{RuleID: r.ID, Reason: fmt.Sprintf("unknown child rule %q", child)}
			}
		}
	}

	if err := rs.checkAcyclic(); err != nil {
		return nil, err
	}

	for _, r := range rs.order {
		if r.Destination != "" {
			rs.byDest[r.Destination] = append(rs.byDest[r.Destination], r)
		}
	}

	return rs, nil
}

// checkAcyclic runs Kahn's topological sort over the composite child graph
// and rejects the rule set when any rule remains unsorted (a cycle).
func (rs *RuleSet) checkAcyclic() error {
	indegree := make(map[string]int, len(rs.rules))
	for id := range rs.rules {
		indegree[id] = 0
	}
	for _, r := range rs.order {
		for _, child := range r.Children {
			indegree[child]++
		}
	}

	queue := make([]string, 0, len(rs.rules))
	for _, r := range rs.order {
		if indegree[r.ID] == 0 {
			queue = append(queue, r.ID)
		}
	}

	sorted := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted++
		for _, child := range rs.rules[id].Children {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if sorted == len(rs.rules) {
		return nil
	}

	var cyclic []string
	for id, deg := range indegree {
		if deg > 0 {
			cyclic = append(cyclic, id)
		}
	}
	sort.Strings(cyclic)
	return &ConfigError{Reason: fmt.Sprintf("cycle among composite rules: %s", strings.Join(cyclic, ", "))}
}

// Evaluate dispatches a rule by id against a task. Unknown ids evaluate as
// non-matching; they cannot occur for validated rule sets.
func (rs *RuleSet) Evaluate(id string, t *task.Task) MatchResult {
	r, ok := rs.rules[id]
	if !ok {
		return MatchResult{Explanation: fmt.Sprintf("unknown rule %q", id)}
	}
	switch r.Kind {
	case KindKeyword:
		return r.evaluateKeyword(t)
	case KindTag:
		return r.evaluateTag(t)
	case KindPriority:
		return r.evaluatePriority(t)
	case KindComposite:
		return rs.evaluateComposite(r, t)
	}
	return MatchResult{Explanation: fmt.Sprintf("unknown rule type %q", r.Kind)}
}

// Rule returns the rule with the given id.
func (rs *RuleSet) Rule(id string) (*Rule, bool) {
	r, ok := rs.rules[id]
	return r, ok
}

// RulesFor returns the rules configured for a destination, in declaration
// order. The returned slice must not be modified.
func (rs *RuleSet) RulesFor(dest string) []*Rule {
	return rs.byDest[dest]
}

// Destinations returns the destination catalog declared alongside the rules.
func (rs *RuleSet) Destinations() []destination.Destination {
	return rs.destinations
}

// Destination returns the declared destination with the given name.
func (rs *RuleSet) Destination(name string) (*destination.Destination, bool) {
	d, ok := rs.destIndex[name]
	return d, ok
}

// DefaultDestination returns the fallback destination name, or "" when none
// is configured.
func (rs *RuleSet) DefaultDestination() string {
	return rs.defaultDest
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
