package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/TaskPilot/internal/domain"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
)

// Store implements decisionstore.Store using PostgreSQL. Inserts are plain
// appends; the schema has no UPDATE or DELETE paths, matching the
// append-only contract.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const decisionColumns = `id, task_id, destination, confidence, strategy, reasoning, rule_ids, alternatives, latency_us, created_at`

// InsertDecision appends a decision.
func (s *Store) InsertDecision(ctx context.Context, d *decision.RoutingDecision) error {
	ruleIDs, err := json.Marshal(d.RuleIDs)
	if err != nil {
		return fmt.Errorf("marshal rule ids: %w", err)
	}
	alternatives, err := json.Marshal(d.Alternatives)
	if err != nil {
		return fmt.Errorf("marshal alternatives: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (`+decisionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.TaskID, d.Destination, d.Confidence, string(d.Strategy),
		d.Reasoning, ruleIDs, alternatives, d.Latency.Microseconds(), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// QueryDecisions returns decisions matching the filter, most recent first.
func (s *Store) QueryDecisions(ctx context.Context, f decisionstore.Filter) ([]decision.RoutingDecision, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.TaskID != "" {
		add("task_id = $%d", f.TaskID)
	}
	if f.Destination != "" {
		add("destination = $%d", f.Destination)
	}
	if f.Strategy != "" {
		add("strategy = $%d", string(f.Strategy))
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <= $%d", f.Until)
	}

	q := `SELECT ` + decisionColumns + ` FROM decisions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []decision.RoutingDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LatestDecision returns the most recent decision for a task.
func (s *Store) LatestDecision(ctx context.Context, taskID string) (*decision.RoutingDecision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions
		 WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1`, taskID)

	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoDecision
		}
		return nil, fmt.Errorf("latest decision for task %s: %w", taskID, err)
	}
	return &d, nil
}

func scanDecision(row pgx.Row) (decision.RoutingDecision, error) {
	var d decision.RoutingDecision
	var strategy string
	var ruleIDs, alternatives []byte
	var latencyUS int64

	err := row.Scan(&d.ID, &d.TaskID, &d.Destination, &d.Confidence, &strategy,
		&d.Reasoning, &ruleIDs, &alternatives, &latencyUS, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return d, pgx.ErrNoRows
		}
		return d, fmt.Errorf("scan decision: %w", err)
	}

	d.Strategy = decision.Strategy(strategy)
	d.Latency = time.Duration(latencyUS) * time.Microsecond
	if err := json.Unmarshal(ruleIDs, &d.RuleIDs); err != nil {
		return d, fmt.Errorf("unmarshal rule ids: %w", err)
	}
	if err := json.Unmarshal(alternatives, &d.Alternatives); err != nil {
		return d, fmt.Errorf("unmarshal alternatives: %w", err)
	}
	return d, nil
}

var _ decisionstore.Store = (*Store)(nil)
