// Package task defines the Task domain entity routed by the engine.
package task

import (
	"encoding/json"
	"strings"
)

// Priority is the ordinal urgency of a task. Higher values are more urgent.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// ParsePriority converts a priority name to its ordinal value.
// Unknown names map to PriorityNormal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow
	case "normal", "":
		return PriorityNormal
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	}
	return PriorityNormal
}

// MarshalJSON encodes the priority as its lowercase name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a priority name; unknown names map to normal.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePriority(s)
	return nil
}

// Task represents a unit of work submitted to the routing engine.
// A task is immutable once submitted; the engine never mutates it.
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags,omitempty"`
	Priority     Priority `json:"priority"`
	Destination  string   `json:"destination,omitempty"` // explicit assignment, bypasses rules
	Capabilities []string `json:"capabilities,omitempty"`
	Context      string   `json:"context,omitempty"`
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}
