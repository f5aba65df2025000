package decision

import "time"

// Bucket is one predicted-confidence decile with its observed outcome rate.
type Bucket struct {
	Low              float64 `json:"low"`
	High             float64 `json:"high"`
	Count            int     `json:"count"`     // decisions in this bucket
	WithFeedback     int     `json:"with_feedback"`
	MeanPredicted    float64 `json:"mean_predicted"`
	ObservedGoodRate float64 `json:"observed_good_rate"`
	Error            float64 `json:"error"` // |mean predicted - observed good rate|
}

// DestinationCalibration is the calibration profile of one destination.
type DestinationCalibration struct {
	Destination      string   `json:"destination"`
	Decisions        int      `json:"decisions"`
	WithFeedback     int      `json:"with_feedback"`
	Buckets          []Bucket `json:"buckets"`
	MeanConfidence   float64  `json:"mean_confidence"`
	ObservedGoodRate float64  `json:"observed_good_rate"`
	MeanError        float64  `json:"mean_error"` // feedback-weighted mean of bucket errors
	Overconfident    bool     `json:"overconfident"`
	Problematic      bool     `json:"problematic"`
}

// Suggestion is a human-readable rule adjustment derived from decisions
// later marked as bad matches.
type Suggestion struct {
	RuleID      string `json:"rule_id"`
	Destination string `json:"destination"`
	BadCount    int    `json:"bad_count"`
	Text        string `json:"text"`
}

// CalibrationReport compares predicted confidence with observed feedback
// quality. Reports are derived on demand and never persisted as a source of
// truth.
type CalibrationReport struct {
	GeneratedAt  time.Time                `json:"generated_at"`
	Decisions    int                      `json:"decisions"`
	WithFeedback int                      `json:"with_feedback"`
	Destinations []DestinationCalibration `json:"destinations"`
	Problematic  []string                 `json:"problematic,omitempty"`
	Suggestions  []Suggestion             `json:"suggestions,omitempty"`
}
