package rule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/TaskPilot/internal/domain/destination"
	"github.com/Strob0t/TaskPilot/internal/domain/task"
)

// Definition is the on-disk shape of a rule set. The serialization format is
// deliberately thin; all invariants are enforced by New, so a Definition that
// survives Build is guaranteed valid.
type Definition struct {
	DefaultDestination string                    `yaml:"default_destination"`
	Destinations       []destination.Destination `yaml:"destinations"`
	Rules              []RuleDefinition          `yaml:"rules"`
}

// RuleDefinition is the on-disk shape of a single rule.
type RuleDefinition struct {
	ID          string   `yaml:"id"`
	Type        string   `yaml:"type"`
	Destination string   `yaml:"destination,omitempty"`
	Weight      *float64 `yaml:"weight,omitempty"` // nil defaults to 1.0

	Keywords []KeywordDefinition `yaml:"keywords,omitempty"`
	Mode     string              `yaml:"mode,omitempty"` // defaults to "word"

	RequiredTags   []string `yaml:"required_tags,omitempty"`
	OptionalTags   []string `yaml:"optional_tags,omitempty"`
	TagPatterns    []string `yaml:"tag_patterns,omitempty"`
	RequiredWeight float64  `yaml:"required_weight,omitempty"`
	OptionalWeight float64  `yaml:"optional_weight,omitempty"`

	MinPriority string `yaml:"min_priority,omitempty"`
	MaxPriority string `yaml:"max_priority,omitempty"`

	Operator string   `yaml:"operator,omitempty"`
	Children []string `yaml:"children,omitempty"`
}

// KeywordDefinition accepts either a bare string ("security") or a mapping
// with an explicit weight ({text: security, weight: 2}).
type KeywordDefinition struct {
	Text   string  `yaml:"text"`
	Weight float64 `yaml:"weight"`
}

// UnmarshalYAML implements yaml.Unmarshaler for the two accepted shapes.
func (k *KeywordDefinition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Text = node.Value
		k.Weight = 1.0
		return nil
	}
	type raw KeywordDefinition
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	if r.Weight == 0 {
		r.Weight = 1.0
	}
	*k = KeywordDefinition(r)
	return nil
}

// Load parses YAML data into a validated RuleSet. Any parse or validation
// failure rejects the whole definition — no partially-valid RuleSet is ever
// returned.
func Load(data []byte) (*RuleSet, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse rules: %v", err)}
	}
	return def.Build()
}

// LoadFromFile reads and parses a rule definition file.
func LoadFromFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	rs, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("load rules file %s: %w", path, err)
	}
	return rs, nil
}

// Build converts the definition into a validated RuleSet.
func (def *Definition) Build() (*RuleSet, error) {
	rules := make([]Rule, 0, len(def.Rules))
	for i := range def.Rules {
		rules = append(rules, def.Rules[i].toRule())
	}
	return New(rules, def.Destinations, def.DefaultDestination)
}

func (rd *RuleDefinition) toRule() Rule {
	weight := 1.0
	if rd.Weight != nil {
		weight = *rd.Weight
	}
	mode := MatchMode(rd.Mode)
	if mode == "" {
		mode = ModeWord
	}

	keywords := make([]Keyword, 0, len(rd.Keywords))
	for _, kw := range rd.Keywords {
		keywords = append(keywords, Keyword{Text: kw.Text, Weight: kw.Weight})
	}

	minPriority := task.PriorityLow
	if rd.MinPriority != "" {
		minPriority = task.ParsePriority(rd.MinPriority)
	}
	maxPriority := task.PriorityCritical
	if rd.MaxPriority != "" {
		maxPriority = task.ParsePriority(rd.MaxPriority)
	}

	return Rule{
		ID:             rd.ID,
		Kind:           Kind(rd.Type),
		Destination:    rd.Destination,
		Weight:         weight,
		Keywords:       keywords,
		Mode:           mode,
		RequiredTags:   rd.RequiredTags,
		OptionalTags:   rd.OptionalTags,
		TagPatterns:    rd.TagPatterns,
		RequiredWeight: rd.RequiredWeight,
		OptionalWeight: rd.OptionalWeight,
		MinPriority:    minPriority,
		MaxPriority:    maxPriority,
		Operator:       Operator(rd.Operator),
		Children:       rd.Children,
	}
}
