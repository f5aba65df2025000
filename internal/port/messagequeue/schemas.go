package messagequeue

// DecisionRecordedPayload is the schema for decisions.recorded messages.
type DecisionRecordedPayload struct {
	DecisionID  string   `json:"decision_id"`
	TaskID      string   `json:"task_id"`
	Destination string   `json:"destination,omitempty"`
	Confidence  float64  `json:"confidence"`
	Strategy    string   `json:"strategy"`
	RuleIDs     []string `json:"rule_ids,omitempty"`
}

// FeedbackReceivedPayload is the schema for feedback.received messages.
type FeedbackReceivedPayload struct {
	FeedbackID         string `json:"feedback_id"`
	DecisionID         string `json:"decision_id"`
	TaskID             string `json:"task_id"`
	WasGoodMatch       bool   `json:"was_good_match"`
	QualityRating      int    `json:"quality_rating,omitempty"`
	ShouldHaveRoutedTo string `json:"should_have_routed_to,omitempty"`
}

// RulesReloadedPayload is the schema for rules.reloaded messages.
type RulesReloadedPayload struct {
	Rules        int    `json:"rules"`
	Destinations int    `json:"destinations"`
	Default      string `json:"default,omitempty"`
}
