package user

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	DefaultTimezone         = "America/New_York"
	DefaultMorningPlanTime  = "07:00"
	DefaultEveningTime      = "20:00"
	DefaultWaterInterval    = 2
	DefaultWeeklyReportTime = "09:00"
)

// DefaultMealReminders holds the reminder time for each main meal slot.
var DefaultMealReminders = map[string]string{
	"breakfast": "08:00",
	"lunch":     "12:00",
	"dinner":    "18:00",
}

// ErrInvalidSettings is wrapped by every Settings.Validate error.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the per-user schedule and feature configuration.
type Settings struct {
	UserID               string            `json:"user_id"`
	MorningPlanTime      string            `json:"morning_plan_time"`
	EveningSummaryTime   string            `json:"evening_summary_time"`
	MealReminders        map[string]string `json:"meal_reminders"`
	WaterReminders       bool              `json:"water_reminders"`
	WaterIntervalHours   int               `json:"water_interval_hours"`
	NotificationsEnabled bool              `json:"notifications_enabled"`
	DisabledTriggers     []string          `json:"disabled_triggers,omitempty"`
	Timezone             string            `json:"timezone"`
	AIProvider           string            `json:"ai_provider,omitempty"`
}

// DefaultSettings returns the settings used when a user never changed anything.
func DefaultSettings(userID string) Settings {
	reminders := make(map[string]string, len(DefaultMealReminders))
	for slot, at := range DefaultMealReminders {
		reminders[slot] = at
	}
	return Settings{
		UserID:               userID,
		MorningPlanTime:      DefaultMorningPlanTime,
		EveningSummaryTime:   DefaultEveningTime,
		MealReminders:        reminders,
		WaterIntervalHours:   DefaultWaterInterval,
		NotificationsEnabled: true,
		Timezone:             DefaultTimezone,
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TriggerEnabled reports whether a named trigger kind may fire.
func (s Settings) TriggerEnabled(kind string) bool {
	if !s.NotificationsEnabled {
		return false
	}
	return !slices.Contains(s.DisabledTriggers, kind)
}

// SetTriggerEnabled toggles a trigger kind.
func (s *Settings) SetTriggerEnabled(kind string, enabled bool) {
	idx := slices.Index(s.DisabledTriggers, kind)
	switch {
	case enabled && idx >= 0:
		s.DisabledTriggers = slices.Delete(s.DisabledTriggers, idx, idx+1)
	case !enabled && idx < 0:
		s.DisabledTriggers = append(s.DisabledTriggers, kind)
	}
}

// Validate checks the clock strings, the interval and the timezone.
func (s Settings) Validate() error {
	for name, v := range map[string]string{"morning_plan_time": s.MorningPlanTime, "evening_summary_time": s.EveningSummaryTime} {
		if _, _, err := ParseClock(v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidSettings, name, err)
		}
	}
	for slot, v := range s.MealReminders {
		if _, _, err := ParseClock(v); err != nil {
			return fmt.Errorf("%w: meal reminder %s: %w", ErrInvalidSettings, slot, err)
		}
	}
	if s.WaterIntervalHours < 1 || s.WaterIntervalHours > 12 {
		return fmt.Errorf("%w: water interval must be between 1 and 12 hours, got %d", ErrInvalidSettings, s.WaterIntervalHours)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, s.Timezone)
	}
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM", v)
	}
	return t.Hour(), t.Minute(), nil
}
