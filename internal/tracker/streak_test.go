package tracker

import (
	"testing"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name       string
		state      StreakState
		date       string
		wantCur    int
		wantLong   int
		wantChange Change
	}{
		{"FirstActivity", StreakState{}, "2026-03-01", 1, 1, ChangeStarted},
		{"SameDay", StreakState{Current: 2, Longest: 4, LastActivity: "2026-03-01"}, "2026-03-01", 2, 4, ChangeUnchanged},
		{"NextDay", StreakState{Current: 2, Longest: 2, LastActivity: "2026-03-01"}, "2026-03-02", 3, 3, ChangeExtended},
		{"NextDayBelowLongest", StreakState{Current: 2, Longest: 9, LastActivity: "2026-03-01"}, "2026-03-02", 3, 9, ChangeExtended},
		{"Gap", StreakState{Current: 5, Longest: 5, LastActivity: "2026-03-01"}, "2026-03-03", 1, 5, ChangeReset},
		{"AcrossMonth", StreakState{Current: 1, Longest: 1, LastActivity: "2026-02-28"}, "2026-03-01", 2, 2, ChangeExtended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, change, err := Advance(tt.state, tt.date)
			if err != nil {
				t.Fatalf("Advance failed: %v", err)
			}
			if got.Current != tt.wantCur || got.Longest != tt.wantLong || change != tt.wantChange {
				t.Errorf("Expected %d/%d %s, got %d/%d %s", tt.wantCur, tt.wantLong, tt.wantChange, got.Current, got.Longest, change)
			}
			if got.Current > got.Longest {
				t.Errorf("Current %d exceeds longest %d", got.Current, got.Longest)
			}
		})
	}

	t.Run("EarlierDateIsRejected", func(t *testing.T) {
		s := StreakState{Current: 1, Longest: 1, LastActivity: "2026-03-05"}
		if _, _, err := Advance(s, "2026-03-04"); err == nil {
			t.Error("Expected an error for an activity before the last one")
		}
	})
}

func TestAdvance_ScenarioC(t *testing.T) {
	var s StreakState
	for _, d := range []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-06"} {
		var err error
		s, _, err = Advance(s, d)
		if err != nil {
			t.Fatalf("Advance(%s) failed: %v", d, err)
		}
	}
	if s.Current != 1 || s.Longest != 3 {
		t.Errorf("Expected current 1 and longest 3, got %d and %d", s.Current, s.Longest)
	}
}

func TestAdvance_LongestNeverDecreases(t *testing.T) {
	dates := []string{"2026-01-01", "2026-01-02", "2026-01-05", "2026-01-06", "2026-01-07", "2026-01-07", "2026-01-20", "2026-01-21"}
	var s StreakState
	prevLongest := 0
	for _, d := range dates {
		s, _, _ = Advance(s, d)
		if s.Longest < prevLongest {
			t.Fatalf("Longest decreased from %d to %d on %s", prevLongest, s.Longest, d)
		}
		if s.Current > s.Longest {
			t.Fatalf("Current %d exceeds longest %d on %s", s.Current, s.Longest, d)
		}
		prevLongest = s.Longest
	}
	if s.Longest != 3 || s.Current != 2 {
		t.Errorf("Expected longest 3 and current 2, got %d and %d", s.Longest, s.Current)
	}
}

func TestReplay(t *testing.T) {
	t.Run("FillsAGap", func(t *testing.T) {
		s := StreakState{UserID: "u", Type: StreakWater, Current: 1, Longest: 2, LastActivity: "2026-03-04"}
		got := Replay(s, []string{"2026-03-01", "2026-03-02", "2026-03-04", "2026-03-03", "2026-03-03"})
		if got.Current != 4 || got.Longest != 4 || got.LastActivity != "2026-03-04" {
			t.Errorf("Expected 4/4 ending 2026-03-04, got %+v", got)
		}
		if got.UserID != "u" || got.Type != StreakWater {
			t.Errorf("Expected identity to be kept, got %+v", got)
		}
	})

	t.Run("KeepsHistoricLongest", func(t *testing.T) {
		s := StreakState{Current: 1, Longest: 10, LastActivity: "2026-03-04"}
		got := Replay(s, []string{"2026-03-02", "2026-03-04"})
		if got.Longest != 10 || got.Current != 1 {
			t.Errorf("Expected 1/10, got %d/%d", got.Current, got.Longest)
		}
	})
}

func TestCurrentAt(t *testing.T) {
	s := StreakState{Current: 4, Longest: 6, LastActivity: "2026-03-10"}
	tests := map[string]int{
		"2026-03-10": 4,
		"2026-03-11": 4,
		"2026-03-12": 0,
	}
	for today, want := range tests {
		if got := s.CurrentAt(today); got != want {
			t.Errorf("CurrentAt(%s): expected %d, got %d", today, want, got)
		}
	}
	if (StreakState{}).CurrentAt("2026-03-10") != 0 {
		t.Error("Expected 0 for a streak that never started")
	}
}
