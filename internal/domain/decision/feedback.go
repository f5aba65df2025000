package decision

import "time"

// Feedback is a post-hoc judgment of a routing decision, submitted by an
// external actor. Feedback is append-only: a later correction for the same
// task creates a new record rather than rewriting history.
type Feedback struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	DecisionID string `json:"decision_id"` // the most recent decision for the task at submission time

	WasGoodMatch bool `json:"was_good_match"`

	// QualityRating is an optional 1-5 rating; 0 means unset. It is
	// advisory only — calibration uses the boolean WasGoodMatch signal.
	QualityRating int `json:"quality_rating,omitempty"`

	// ShouldHaveRoutedTo optionally names the destination the submitter
	// believes was correct.
	ShouldHaveRoutedTo string `json:"should_have_routed_to,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
