package user

import (
	"errors"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings("u1")
	if err := s.Validate(); err != nil {
		t.Fatalf("Expected defaults to be valid, got %v", err)
	}
	if s.WaterReminders || !s.NotificationsEnabled {
		t.Errorf("Expected water reminders off and notifications on, got %+v", s)
	}
	if s.Location().String() != DefaultTimezone {
		t.Errorf("Expected %s, got %s", DefaultTimezone, s.Location())
	}

	s.MealReminders["lunch"] = "13:00"
	if DefaultMealReminders["lunch"] != "12:00" {
		t.Error("Expected defaults to be copied, not shared")
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"BadMorning", func(s *Settings) { s.MorningPlanTime = "7am" }},
		{"BadEvening", func(s *Settings) { s.EveningSummaryTime = "25:00" }},
		{"BadReminder", func(s *Settings) { s.MealReminders["dinner"] = "" }},
		{"IntervalTooSmall", func(s *Settings) { s.WaterIntervalHours = 0 }},
		{"IntervalTooLarge", func(s *Settings) { s.WaterIntervalHours = 13 }},
		{"UnknownTimezone", func(s *Settings) { s.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings("u1")
			tt.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestTriggerEnabled(t *testing.T) {
	s := DefaultSettings("u1")
	if !s.TriggerEnabled("morning_plan") {
		t.Error("Expected triggers enabled by default")
	}

	s.SetTriggerEnabled("morning_plan", false)
	s.SetTriggerEnabled("morning_plan", false)
	if s.TriggerEnabled("morning_plan") || len(s.DisabledTriggers) != 1 {
		t.Errorf("Expected morning_plan disabled once, got %v", s.DisabledTriggers)
	}
	s.SetTriggerEnabled("morning_plan", true)
	if !s.TriggerEnabled("morning_plan") || len(s.DisabledTriggers) != 0 {
		t.Errorf("Expected morning_plan enabled again, got %v", s.DisabledTriggers)
	}

	s.NotificationsEnabled = false
	if s.TriggerEnabled("evening_summary") {
		t.Error("Expected the master switch to disable everything")
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:45")
	if err != nil || h != 7 || m != 45 {
		t.Errorf("ParseClock(07:45) = %d, %d, %v", h, m, err)
	}
	if _, _, err := ParseClock("7:45pm"); err == nil {
		t.Error("Expected an error for 7:45pm")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	s := Settings{Timezone: "Nowhere/Special"}
	if s.Location().String() != "UTC" {
		t.Errorf("Expected UTC, got %s", s.Location())
	}
}
