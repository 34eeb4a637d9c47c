package tracker

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/shared"
	"diet-agent/internal/user"
)

const (
	reportDays         = 7
	maxRecommendations = 5
	lowWaterML         = 1500
	consistentDays     = 5
)

// DayReport is one row of the weekly report.
type DayReport struct {
	DailyProgress
	// NoPlan and NoLog flag gaps: no stored plan, or no log entry of any kind.
	NoPlan bool `json:"no_plan"`
	NoLog  bool `json:"no_log"`
}

// WeeklyReport aggregates the seven days ending at End.
type WeeklyReport struct {
	UserID          string                 `json:"user_id"`
	Start           string                 `json:"start"`
	End             string                 `json:"end"`
	Days            []DayReport            `json:"days"`
	Targets         nutrition.MacroTargets `json:"targets"`
	Averages        nutrition.MacroTargets `json:"averages"`
	AvgWaterML      int                    `json:"avg_water_ml"`
	DaysLogged      int                    `json:"days_logged"`
	DaysOnTrack     int                    `json:"days_on_track"`
	WeightChange    *float64               `json:"weight_change,omitempty"`
	LoggingStreak   int                    `json:"logging_streak"`
	Recommendations []string               `json:"recommendations"`
}

// Gaps lists the dates flagged as gaps.
func (r *WeeklyReport) Gaps() []string {
	var out []string
	for _, d := range r.Days {
		if d.NoPlan || d.NoLog {
			out = append(out, d.Date)
		}
	}
	return out
}

// WeeklyReport builds the report of the seven days ending at weekEnding.
func (t *Tracker) WeeklyReport(ctx context.Context, userID, weekEnding string) (*WeeklyReport, error) {
	if _, err := shared.ParseDate(weekEnding); err != nil {
		return nil, err
	}
	start := shared.AddDays(weekEnding, -(reportDays - 1))

	var (
		profile *user.Profile
		entries []LogEntry
		plans   []planner.DayPlan
		streak  *StreakState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = t.profiles.Get(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = t.logs.ListRange(gctx, userID, start, weekEnding)
		return err
	})
	g.Go(func() error {
		var err error
		plans, err = t.plans.ListRange(gctx, userID, start, weekEnding)
		return err
	})
	g.Go(func() error {
		var err error
		streak, err = t.streaks.Get(gctx, userID, StreakLogging)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	targets, waterTarget := targetsFor(profile)
	loggedDates := make(map[string]bool, reportDays)
	for _, e := range entries {
		loggedDates[e.Date] = true
	}
	planByDate := make(map[string]planner.DayPlan, len(plans))
	for _, p := range plans {
		planByDate[p.Date] = p
	}

	r := &WeeklyReport{UserID: userID, Start: start, End: weekEnding, Targets: targets}
	var sum nutrition.MacroTargets
	totalWater := 0
	for i := 0; i < reportDays; i++ {
		date := shared.AddDays(start, i)
		dayTargets := targets
		plan, hasPlan := planByDate[date]
		if hasPlan && plan.Targets.Calories > 0 {
			dayTargets = plan.Targets
		}
		progress := summarize(date, entries, dayTargets)
		progress.WaterTargetML = waterTarget
		progress.HasPlan = hasPlan

		day := DayReport{DailyProgress: progress, NoPlan: !hasPlan, NoLog: !loggedDates[date]}
		r.Days = append(r.Days, day)

		totalWater += progress.WaterML
		if progress.OnTrack {
			r.DaysOnTrack++
		}
		if progress.MealsLogged > 0 {
			r.DaysLogged++
			sum.Calories += progress.Consumed.Calories
			sum.Protein += progress.Consumed.Protein
			sum.Carbs += progress.Consumed.Carbs
			sum.Fat += progress.Consumed.Fat
		}
	}

	if r.DaysLogged > 0 {
		n := float64(r.DaysLogged)
		r.Averages = nutrition.MacroTargets{
			Calories: int(math.Round(float64(sum.Calories) / n)),
			Protein:  int(math.Round(float64(sum.Protein) / n)),
			Carbs:    int(math.Round(float64(sum.Carbs) / n)),
			Fat:      int(math.Round(float64(sum.Fat) / n)),
		}
	}
	r.AvgWaterML = int(math.Round(float64(totalWater) / reportDays))
	r.WeightChange = weightChange(entries)
	if streak != nil {
		r.LoggingStreak = streak.CurrentAt(weekEnding)
	}

	goal := user.GoalMaintenance
	if profile != nil {
		goal = profile.GoalType
	}
	r.Recommendations = recommendations(r, goal)
	return r, nil
}

// weightChange is the latest minus the earliest weight in the window.
func weightChange(entries []LogEntry) *float64 {
	var first, last *LogEntry
	for i := range entries {
		if entries[i].Kind != KindWeight {
			continue
		}
		if first == nil {
			first = &entries[i]
		}
		last = &entries[i]
	}
	if first == nil || first == last {
		return nil
	}
	change := math.Round((last.WeightKG-first.WeightKG)*10) / 10
	return &change
}

func recommendations(r *WeeklyReport, goal user.GoalType) []string {
	var recs []string
	target := r.Targets
	if target.Calories <= 0 {
		target = defaultTargets
	}

	if r.DaysLogged > 0 {
		calDiffPct := float64(r.Averages.Calories-target.Calories) / float64(target.Calories) * 100
		avgProtein := float64(r.Averages.Protein)

		switch goal {
		case user.GoalWeightLoss:
			switch {
			case calDiffPct > 10:
				recs = append(recs, "You're averaging above your calorie target. Try portion control or swap high-calorie snacks.")
			case calDiffPct < -20:
				recs = append(recs, "You're eating too little. Severe restriction can slow metabolism. Aim closer to your target.")
			case r.WeightChange != nil && *r.WeightChange < -0.5:
				recs = append(recs, "Great progress this week! You're losing weight at a healthy rate.")
			}
		case user.GoalMuscleGain:
			if calDiffPct < -5 {
				recs = append(recs, "You need to eat more to build muscle. Add calorie-dense healthy foods.")
			}
			if avgProtein < float64(target.Protein)*0.9 {
				recs = append(recs, "Increase protein intake for muscle growth. Add eggs, chicken, or protein shakes.")
			}
		}

		if avgProtein < float64(target.Protein)*0.8 {
			recs = append(recs, fmt.Sprintf(
				"Your protein intake is low (avg %dg vs target %dg). Add lean meats, eggs, legumes, or Greek yogurt.",
				r.Averages.Protein, target.Protein))
		}
	}

	if r.DaysLogged < consistentDays {
		recs = append(recs, "Try to log your meals more consistently. Tracking helps you stay aware of your intake.")
	}
	if r.AvgWaterML < lowWaterML {
		recs = append(recs, "Your water intake seems low. Aim for at least 2-3 liters daily.")
	}

	switch {
	case r.DaysOnTrack >= 5:
		recs = append([]string{"Excellent consistency this week! Keep up the great work!"}, recs...)
	case r.DaysOnTrack >= 3:
		recs = append([]string{"Good progress! You're building healthy habits."}, recs...)
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
