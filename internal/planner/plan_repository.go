package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PlanRepository is a database-backed repository for day plans, one row per (user, date).
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{db: d}
}

// Get retrieves the plan of a user for a date. A missing plan yields nil, nil.
func (r *PlanRepository) Get(ctx context.Context, userID, date string) (*DayPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM day_plans WHERE user_id = ? AND plan_date = ?`, userID, date).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No plan for that day
		}
		return nil, fmt.Errorf("failed to get plan for user %s on %s: %w", userID, date, err)
	}
	return decodePlan(data)
}

// Save stores a plan, replacing any plan already stored for the same user and date.
func (r *PlanRepository) Save(ctx context.Context, p *DayPlan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO day_plans (id, user_id, plan_date, strategy, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, plan_date) DO UPDATE SET
			id = excluded.id,
			strategy = excluded.strategy,
			data = excluded.data,
			created_at = excluded.created_at`,
		p.ID, p.UserID, p.Date, p.Strategy, string(data), p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save plan for user %s on %s: %w", p.UserID, p.Date, err)
	}
	return nil
}

// ListRecent returns up to limit plans dated on or before date, most recent first.
func (r *PlanRepository) ListRecent(ctx context.Context, userID, date string, limit int) ([]DayPlan, error) {
	return r.list(ctx, `
		SELECT data FROM day_plans
		WHERE user_id = ? AND plan_date <= ?
		ORDER BY plan_date DESC LIMIT ?`, userID, date, limit)
}

// ListRange returns the plans dated from..to inclusive, oldest first.
func (r *PlanRepository) ListRange(ctx context.Context, userID, from, to string) ([]DayPlan, error) {
	return r.list(ctx, `
		SELECT data FROM day_plans
		WHERE user_id = ? AND plan_date >= ? AND plan_date <= ?
		ORDER BY plan_date`, userID, from, to)
}

// Count returns the number of stored plans for a user and date, which is never more than one.
func (r *PlanRepository) Count(ctx context.Context, userID, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM day_plans WHERE user_id = ? AND plan_date = ?`, userID, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return n, nil
}

func (r *PlanRepository) list(ctx context.Context, query string, args ...any) ([]DayPlan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []DayPlan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p, err := decodePlan(data)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func decodePlan(data string) (*DayPlan, error) {
	var p DayPlan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan JSON: %w", err)
	}
	if err := p.CheckTotals(); err != nil {
		return nil, err
	}
	return &p, nil
}
