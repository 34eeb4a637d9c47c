package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is a database-backed repository for profiles and settings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Get retrieves a profile by its ID. A missing profile yields nil, nil.
func (r *Repository) Get(ctx context.Context, id string) (*Profile, error) {
	return r.getOne(ctx, `SELECT data FROM users WHERE id = ?`, id)
}

// GetByTelegramID retrieves a profile by the chat account it belongs to.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*Profile, error) {
	return r.getOne(ctx, `SELECT data FROM users WHERE telegram_id = ?`, telegramID)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*Profile, error) {
	var data string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Profile not found
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile JSON: %w", err)
	}
	return &p, nil
}

// Save inserts or updates a profile, assigning an ID to new ones.
func (r *Repository) Save(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile to JSON: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, telegram_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			telegram_id = excluded.telegram_id,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		p.ID, p.TelegramID, string(data), p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.ID, err)
	}
	return nil
}

// ListIDs returns every known user ID.
func (r *Repository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetSettings retrieves a user's settings. Missing settings yield nil, nil.
func (r *Repository) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM user_settings WHERE user_id = ?`, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings for user %s: %w", userID, err)
	}

	var s Settings
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings JSON: %w", err)
	}
	return &s, nil
}

// SettingsOrDefault returns the stored settings or the defaults when none exist.
func (r *Repository) SettingsOrDefault(ctx context.Context, userID string) (Settings, error) {
	s, err := r.GetSettings(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	if s == nil {
		return DefaultSettings(userID), nil
	}
	return *s, nil
}

// SaveSettings inserts or replaces a user's settings.
func (r *Repository) SaveSettings(ctx context.Context, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings to JSON: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.UserID, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save settings for user %s: %w", s.UserID, err)
	}
	return nil
}
