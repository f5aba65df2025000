package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/TaskPilot/internal/domain/decision"
)

// InsertFeedback appends a feedback record.
func (s *Store) InsertFeedback(ctx context.Context, fb *decision.Feedback) error {
	const q = `
		INSERT INTO feedback (id, task_id, decision_id, was_good_match, quality_rating, should_have_routed_to, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		fb.ID, fb.TaskID, fb.DecisionID, fb.WasGoodMatch,
		fb.QualityRating, fb.ShouldHaveRoutedTo, fb.Notes, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns feedback created at or after since, oldest first.
func (s *Store) ListFeedback(ctx context.Context, since time.Time) ([]decision.Feedback, error) {
	const q = `
		SELECT id, task_id, decision_id, was_good_match, quality_rating, should_have_routed_to, notes, created_at
		FROM feedback
		WHERE $1::timestamptz IS NULL OR created_at >= $1
		ORDER BY created_at ASC`

	var sinceArg any
	if !since.IsZero() {
		sinceArg = since
	}

	rows, err := s.pool.Query(ctx, q, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []decision.Feedback
	for rows.Next() {
		var fb decision.Feedback
		if err := rows.Scan(
			&fb.ID, &fb.TaskID, &fb.DecisionID, &fb.WasGoodMatch,
			&fb.QualityRating, &fb.ShouldHaveRoutedTo, &fb.Notes, &fb.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
