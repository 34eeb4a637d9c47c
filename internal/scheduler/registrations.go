package scheduler

import (
	"slices"
	"time"

	"diet-agent/internal/notify"
	"diet-agent/internal/user"
)

const (
	waterFirstHour = 8
	waterLastHour  = 20
	waterMinute    = 30
	weeklyReportOn = time.Sunday
)

// Registration is a trigger that fires daily at a local time of day, or weekly when Weekday is set.
type Registration struct {
	Trigger notify.Trigger
	Hour    int
	Minute  int
	Weekday *time.Weekday
}

// Registrations lists the triggers of a user's schedule. Disabled kinds are still listed; the
// dispatcher decides whether they fire. Malformed times are skipped.
func Registrations(s user.Settings) []Registration {
	var regs []Registration
	add := func(trig notify.Trigger, clock string) {
		h, m, err := user.ParseClock(clock)
		if err != nil {
			return
		}
		regs = append(regs, Registration{Trigger: trig, Hour: h, Minute: m})
	}

	add(notify.Trigger{Kind: notify.TriggerMorningPlan}, s.MorningPlanTime)

	slots := make([]string, 0, len(s.MealReminders))
	for slot := range s.MealReminders {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	for _, slot := range slots {
		add(notify.Trigger{Kind: notify.TriggerMealReminder, Slot: slot}, s.MealReminders[slot])
	}

	if s.WaterReminders {
		interval := s.WaterIntervalHours
		if interval < 1 {
			interval = user.DefaultWaterInterval
		}
		for h := waterFirstHour; h <= waterLastHour; h += interval {
			regs = append(regs, Registration{Trigger: notify.Trigger{Kind: notify.TriggerWaterReminder}, Hour: h, Minute: waterMinute})
		}
	}

	add(notify.Trigger{Kind: notify.TriggerEveningSummary}, s.EveningSummaryTime)

	if h, m, err := user.ParseClock(user.DefaultWeeklyReportTime); err == nil {
		day := weeklyReportOn
		regs = append(regs, Registration{Trigger: notify.Trigger{Kind: notify.TriggerWeeklyReport}, Hour: h, Minute: m, Weekday: &day})
	}
	return regs
}

// Occurrences returns the instants in (from, to] at which r fires in loc.
func (r Registration) Occurrences(from, to time.Time, loc *time.Location) []time.Time {
	if !to.After(from) {
		return nil
	}
	start, end := from.In(loc), to.In(loc)
	var out []time.Time
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for !day.After(end) {
		at := time.Date(day.Year(), day.Month(), day.Day(), r.Hour, r.Minute, 0, 0, loc)
		if (r.Weekday == nil || at.Weekday() == *r.Weekday) && at.After(from) && !at.After(to) {
			out = append(out, at)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}
