package tracker

import (
	"fmt"
	"sort"

	"diet-agent/internal/shared"
)

// StreakType names a tracked habit.
type StreakType string

const (
	StreakLogging       StreakType = "logging"
	StreakPlanFollowing StreakType = "plan_following"
	StreakWater         StreakType = "water"
)

// StreakTypes lists every tracked habit.
var StreakTypes = []StreakType{StreakLogging, StreakPlanFollowing, StreakWater}

// Change describes what a qualifying activity did to a streak.
type Change string

const (
	ChangeStarted   Change = "started"
	ChangeExtended  Change = "extended"
	ChangeUnchanged Change = "unchanged"
	ChangeReset     Change = "reset"
	ChangeReplayed  Change = "replayed"
)

// StreakState is the running streak of one habit for one user. Current never exceeds Longest.
type StreakState struct {
	UserID       string     `json:"user_id"`
	Type         StreakType `json:"type"`
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
	LastActivity string     `json:"last_activity,omitempty"`
}

// Advance applies a qualifying activity on date. Dates before LastActivity are rejected; callers
// reconcile those with Replay.
func Advance(s StreakState, date string) (StreakState, Change, error) {
	if s.LastActivity == "" {
		s.Current = 1
		s.Longest = max(s.Longest, 1)
		s.LastActivity = date
		return s, ChangeStarted, nil
	}

	days, err := shared.DaysBetween(s.LastActivity, date)
	if err != nil {
		return s, ChangeUnchanged, err
	}
	switch {
	case days < 0:
		return s, ChangeUnchanged, fmt.Errorf("activity on %s precedes last activity %s", date, s.LastActivity)
	case days == 0:
		return s, ChangeUnchanged, nil
	case days == 1:
		s.Current++
		s.Longest = max(s.Longest, s.Current)
		s.LastActivity = date
		return s, ChangeExtended, nil
	default:
		s.Current = 1
		s.Longest = max(s.Longest, 1)
		s.LastActivity = date
		return s, ChangeReset, nil
	}
}

// Replay rebuilds a streak from every qualifying date. Longest never decreases.
func Replay(s StreakState, dates []string) StreakState {
	uniq := map[string]bool{}
	var sorted []string
	for _, d := range dates {
		if _, err := shared.ParseDate(d); err != nil || uniq[d] {
			continue
		}
		uniq[d] = true
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	longest := s.Longest
	replayed := StreakState{UserID: s.UserID, Type: s.Type}
	for _, d := range sorted {
		replayed, _, _ = Advance(replayed, d)
		longest = max(longest, replayed.Longest)
	}
	replayed.Longest = max(longest, replayed.Current)
	return replayed
}

// CurrentAt is the streak as seen on today: zero once a full day has passed without activity.
func (s StreakState) CurrentAt(today string) int {
	if s.LastActivity == "" {
		return 0
	}
	days, err := shared.DaysBetween(s.LastActivity, today)
	if err != nil || days > 1 {
		return 0
	}
	return s.Current
}
