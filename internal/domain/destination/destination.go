// Package destination defines the routing targets tasks may be sent to.
package destination

import "github.com/Strob0t/TaskPilot/internal/domain/task"

// Destination is a candidate routing target (a project, queue, or executor).
// Destinations are supplied externally per routing call and treated as
// read-only for the duration of a decision.
type Destination struct {
	Name         string   `json:"name" yaml:"name"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// PriorityBoosts multiplies the aggregated confidence when the task's
	// priority matches. Values > 1 favor the destination, < 1 penalize it.
	PriorityBoosts map[string]float64 `json:"priority_boosts,omitempty" yaml:"priority_boosts,omitempty"`

	// TagBoosts multiplies the aggregated confidence when the task carries
	// the given tag.
	TagBoosts map[string]float64 `json:"tag_boosts,omitempty" yaml:"tag_boosts,omitempty"`
}

// HasCapability reports whether the destination offers the given capability.
func (d *Destination) HasCapability(cap string) bool {
	for _, c := range d.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Boost returns the combined boost multiplier for a task: the priority boost
// (if configured for the task's priority) times every tag boost whose tag the
// task carries. Returns 1.0 when nothing applies.
func (d *Destination) Boost(t *task.Task) float64 {
	boost := 1.0
	if b, ok := d.PriorityBoosts[t.Priority.String()]; ok && b > 0 {
		boost *= b
	}
	for tag, b := range d.TagBoosts {
		if b > 0 && t.HasTag(tag) {
			boost *= b
		}
	}
	return boost
}
