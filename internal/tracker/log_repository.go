package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LogRepository is a database-backed, append-only store of log entries.
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new LogRepository.
func NewLogRepository(d *sql.DB) *LogRepository {
	return &LogRepository{db: d}
}

// Append inserts an entry. Entries are never updated.
func (r *LogRepository) Append(ctx context.Context, e LogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO log_entries
			(id, user_id, kind, log_date, logged_at, meal_type, description, calories, protein, carbs, fat, from_plan, water_ml, weight_kg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Kind), e.Date, e.LoggedAt.UTC().Format(time.RFC3339Nano),
		e.MealType, e.Description, e.Calories, e.Protein, e.Carbs, e.Fat, e.FromPlan, e.WaterML, e.WeightKG)
	if err != nil {
		return fmt.Errorf("failed to append %s entry for user %s: %w", e.Kind, e.UserID, err)
	}
	return nil
}

// ListRange returns the entries dated from..to inclusive in logging order.
func (r *LogRepository) ListRange(ctx context.Context, userID, from, to string) ([]LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, log_date, logged_at, meal_type, description, calories, protein, carbs, fat, from_plan, water_ml, weight_kg
		FROM log_entries
		WHERE user_id = ? AND log_date >= ? AND log_date <= ?
		ORDER BY log_date, logged_at`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			e        LogEntry
			kind     string
			loggedAt string
		)
		err := rows.Scan(&e.ID, &e.UserID, &kind, &e.Date, &loggedAt, &e.MealType, &e.Description,
			&e.Calories, &e.Protein, &e.Carbs, &e.Fat, &e.FromPlan, &e.WaterML, &e.WeightKG)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Kind = Kind(kind)
		if e.LoggedAt, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("failed to parse logged_at of entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ActivityDates returns the distinct dates on which the user did something that counts towards
// the streak type, oldest first.
func (r *LogRepository) ActivityDates(ctx context.Context, userID string, t StreakType) ([]string, error) {
	var filter string
	switch t {
	case StreakLogging:
		filter = `kind = 'food'`
	case StreakPlanFollowing:
		filter = `kind = 'food' AND from_plan = 1`
	case StreakWater:
		filter = `kind = 'water'`
	default:
		return nil, fmt.Errorf("unknown streak type %q", t)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT log_date FROM log_entries WHERE user_id = ? AND `+filter+` ORDER BY log_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan activity date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// LatestWeight returns the most recent weight entry, or nil when none exists.
func (r *LogRepository) LatestWeight(ctx context.Context, userID string) (*LogEntry, error) {
	var (
		e        LogEntry
		loggedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, log_date, logged_at, weight_kg FROM log_entries
		WHERE user_id = ? AND kind = 'weight'
		ORDER BY log_date DESC, logged_at DESC LIMIT 1`, userID).Scan(&e.ID, &e.Date, &loggedAt, &e.WeightKG)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest weight: %w", err)
	}
	e.UserID = userID
	e.Kind = KindWeight
	e.LoggedAt, _ = time.Parse(time.RFC3339Nano, loggedAt)
	return &e, nil
}
