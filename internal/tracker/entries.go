package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"diet-agent/internal/shared"
)

var (
	// ErrInvalidEntry is matched by every rejected log entry.
	ErrInvalidEntry = errors.New("invalid log entry")
	// ErrPersistence wraps failures of the log and streak stores.
	ErrPersistence = errors.New("tracker persistence failure")
)

// Kind is the category of a log entry.
type Kind string

const (
	KindFood   Kind = "food"
	KindWater  Kind = "water"
	KindWeight Kind = "weight"
)

const (
	maxWaterML  = 10000
	maxCalories = 10000
)

// LogEntry is an append-only record of food, water or weight.
type LogEntry struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Kind     Kind      `json:"kind"`
	Date     string    `json:"date"`
	LoggedAt time.Time `json:"logged_at"`

	MealType    string `json:"meal_type,omitempty"`
	Description string `json:"description,omitempty"`
	Calories    int    `json:"calories,omitempty"`
	Protein     int    `json:"protein,omitempty"`
	Carbs       int    `json:"carbs,omitempty"`
	Fat         int    `json:"fat,omitempty"`
	FromPlan    bool   `json:"from_plan,omitempty"`

	WaterML  int     `json:"water_ml,omitempty"`
	WeightKG float64 `json:"weight_kg,omitempty"`
}

// Validate checks the fields required by the entry's kind.
func (e LogEntry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidEntry)
	}
	if e.Date != "" {
		if _, err := shared.ParseDate(e.Date); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
	}
	switch e.Kind {
	case KindFood:
		if strings.TrimSpace(e.Description) == "" {
			return fmt.Errorf("%w: food entry needs a description", ErrInvalidEntry)
		}
		if e.Calories < 0 || e.Protein < 0 || e.Carbs < 0 || e.Fat < 0 || e.Calories > maxCalories {
			return fmt.Errorf("%w: food values out of range", ErrInvalidEntry)
		}
	case KindWater:
		if e.WaterML <= 0 || e.WaterML > maxWaterML {
			return fmt.Errorf("%w: water amount must be between 1 and %d ml", ErrInvalidEntry, maxWaterML)
		}
	case KindWeight:
		if !(e.WeightKG >= 20 && e.WeightKG <= 500) {
			return fmt.Errorf("%w: weight must be between 20 and 500 kg", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	return nil
}

// Qualifies lists the streaks an entry counts towards.
func (e LogEntry) Qualifies() []StreakType {
	switch e.Kind {
	case KindFood:
		if e.FromPlan {
			return []StreakType{StreakLogging, StreakPlanFollowing}
		}
		return []StreakType{StreakLogging}
	case KindWater:
		return []StreakType{StreakWater}
	default:
		return nil
	}
}
