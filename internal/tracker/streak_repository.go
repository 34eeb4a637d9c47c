package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StreakRepository is a database-backed repository for streak state.
type StreakRepository struct {
	db *sql.DB
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(d *sql.DB) *StreakRepository {
	return &StreakRepository{db: d}
}

// Get retrieves a streak. A streak that never started yields nil, nil.
func (r *StreakRepository) Get(ctx context.Context, userID string, t StreakType) (*StreakState, error) {
	s := StreakState{UserID: userID, Type: t}
	err := r.db.QueryRowContext(ctx, `
		SELECT current_streak, longest_streak, last_activity_date FROM streaks
		WHERE user_id = ? AND streak_type = ?`, userID, string(t)).Scan(&s.Current, &s.Longest, &s.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s streak for user %s: %w", t, userID, err)
	}
	return &s, nil
}

// Save inserts or replaces a streak.
func (r *StreakRepository) Save(ctx context.Context, s StreakState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, streak_type, current_streak, longest_streak, last_activity_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, streak_type) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_activity_date = excluded.last_activity_date,
			updated_at = excluded.updated_at`,
		s.UserID, string(s.Type), s.Current, s.Longest, s.LastActivity, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save %s streak for user %s: %w", s.Type, s.UserID, err)
	}
	return nil
}

// List returns every streak of a user.
func (r *StreakRepository) List(ctx context.Context, userID string) ([]StreakState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT streak_type, current_streak, longest_streak, last_activity_date FROM streaks
		WHERE user_id = ? ORDER BY streak_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []StreakState
	for rows.Next() {
		s := StreakState{UserID: userID}
		var t string
		if err := rows.Scan(&t, &s.Current, &s.Longest, &s.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		s.Type = StreakType(t)
		out = append(out, s)
	}
	return out, rows.Err()
}
