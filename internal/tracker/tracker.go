package tracker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"diet-agent/internal/metrics"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/shared"
	"diet-agent/internal/user"
)

// Targets used when a profile cannot produce its own.
var defaultTargets = nutrition.MacroTargets{Calories: 2000, Protein: 150, Carbs: 250, Fat: 65}

const (
	defaultWaterTargetML = 2500
	onTrackTolerance     = 0.15
	onTrackMinMeals      = 2
)

// ProfileReader reads profiles and settings.
type ProfileReader interface {
	Get(ctx context.Context, id string) (*user.Profile, error)
	SettingsOrDefault(ctx context.Context, userID string) (user.Settings, error)
}

// PlanReader reads stored day plans.
type PlanReader interface {
	Get(ctx context.Context, userID, date string) (*planner.DayPlan, error)
	ListRange(ctx context.Context, userID, from, to string) ([]planner.DayPlan, error)
}

// LogStore is the append-only log.
type LogStore interface {
	Append(ctx context.Context, e LogEntry) error
	ListRange(ctx context.Context, userID, from, to string) ([]LogEntry, error)
	ActivityDates(ctx context.Context, userID string, t StreakType) ([]string, error)
}

// StreakStore persists streak state.
type StreakStore interface {
	Get(ctx context.Context, userID string, t StreakType) (*StreakState, error)
	Save(ctx context.Context, s StreakState) error
	List(ctx context.Context, userID string) ([]StreakState, error)
}

// Tracker records logs, keeps streaks current and reports progress. Logs of one user are
// processed one at a time; different users proceed concurrently.
type Tracker struct {
	profiles   ProfileReader
	plans      PlanReader
	logs       LogStore
	streaks    StreakStore
	locks      shared.KeyedMutex
	collectors *metrics.Collectors
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a Tracker. collectors may be nil.
func New(profiles ProfileReader, plans PlanReader, logs LogStore, streaks StreakStore, collectors *metrics.Collectors, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		profiles:   profiles,
		plans:      plans,
		logs:       logs,
		streaks:    streaks,
		collectors: collectors,
		logger:     logger,
		now:        time.Now,
	}
}

// RecordLog validates and appends an entry, filling its ID, time and local date, then updates the
// streaks the entry counts towards.
func (t *Tracker) RecordLog(ctx context.Context, e *LogEntry) error {
	if e.LoggedAt.IsZero() {
		e.LoggedAt = t.now()
	}
	if e.Kind == KindFood {
		e.Description = normalizeDescription(e.Description)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	unlock := t.locks.Lock(e.UserID)
	defer unlock()

	if e.Date == "" || (e.Kind == KindFood && e.MealType == "") {
		settings, err := t.profiles.SettingsOrDefault(ctx, e.UserID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		local := e.LoggedAt.In(settings.Location())
		if e.Date == "" {
			e.Date = local.Format(shared.DateLayout)
		}
		if e.Kind == KindFood && e.MealType == "" {
			e.MealType = nutrition.MealTypeForHour(local.Hour())
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	if err := t.logs.Append(ctx, *e); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	for _, st := range e.Qualifies() {
		if err := t.updateStreak(ctx, e.UserID, st, e.Date); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) updateStreak(ctx context.Context, userID string, st StreakType, date string) error {
	current, err := t.streaks.Get(ctx, userID, st)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	state := StreakState{UserID: userID, Type: st}
	if current != nil {
		state = *current
	}

	var (
		next   StreakState
		change Change
	)
	if state.LastActivity != "" && date < state.LastActivity {
		dates, err := t.logs.ActivityDates(ctx, userID, st)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		next, change = Replay(state, dates), ChangeReplayed
	} else {
		next, change, err = Advance(state, date)
		if err != nil {
			return err
		}
	}

	t.collectors.StreakUpdate(string(st), string(change))
	if next == state {
		return nil
	}
	if err := t.streaks.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	t.logger.Debug("streak updated",
		zap.String("user_id", userID),
		zap.String("type", string(st)),
		zap.String("change", string(change)),
		zap.Int("current", next.Current),
		zap.Int("longest", next.Longest),
	)
	return nil
}

// Streaks returns every streak of the user with Current as seen on today.
func (t *Tracker) Streaks(ctx context.Context, userID, today string) ([]StreakState, error) {
	states, err := t.streaks.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	for i := range states {
		states[i].Current = states[i].CurrentAt(today)
	}
	return states, nil
}

// DailyProgress is one day's intake against the targets.
type DailyProgress struct {
	Date          string                 `json:"date"`
	Consumed      nutrition.MacroTargets `json:"consumed"`
	Targets       nutrition.MacroTargets `json:"targets"`
	MealsLogged   int                    `json:"meals_logged"`
	WaterML       int                    `json:"water_ml"`
	WaterTargetML int                    `json:"water_target_ml"`
	OnTrack       bool                   `json:"on_track"`
	HasPlan       bool                   `json:"has_plan"`
}

// RemainingCalories is what is left of the calorie target, never negative.
func (d DailyProgress) RemainingCalories() int {
	return max(d.Targets.Calories-d.Consumed.Calories, 0)
}

// DailyProgress summarizes a user's logs for one date.
func (t *Tracker) DailyProgress(ctx context.Context, userID, date string) (*DailyProgress, error) {
	if _, err := shared.ParseDate(date); err != nil {
		return nil, err
	}
	profile, err := t.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	entries, err := t.logs.ListRange(ctx, userID, date, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	plan, err := t.plans.Get(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	targets, waterTarget := targetsFor(profile)
	if plan != nil && plan.Targets.Calories > 0 {
		targets = plan.Targets
	}
	p := summarize(date, entries, targets)
	p.WaterTargetML = waterTarget
	p.HasPlan = plan != nil
	return &p, nil
}

func targetsFor(profile *user.Profile) (nutrition.MacroTargets, int) {
	if profile == nil {
		return defaultTargets, defaultWaterTargetML
	}
	targets, err := nutrition.ComputeTargets(*profile)
	if err != nil {
		targets = defaultTargets
	}
	water := defaultWaterTargetML
	if profile.WeightKG > 0 {
		water = nutrition.WaterTargetML(profile.WeightKG, profile.ActivityLevel)
	}
	return targets, water
}

func summarize(date string, entries []LogEntry, targets nutrition.MacroTargets) DailyProgress {
	p := DailyProgress{Date: date, Targets: targets}
	for _, e := range entries {
		if e.Date != date {
			continue
		}
		switch e.Kind {
		case KindFood:
			p.Consumed.Calories += e.Calories
			p.Consumed.Protein += e.Protein
			p.Consumed.Carbs += e.Carbs
			p.Consumed.Fat += e.Fat
			p.MealsLogged++
		case KindWater:
			p.WaterML += e.WaterML
		}
	}
	p.OnTrack = onTrack(p.Consumed.Calories, targets.Calories, p.MealsLogged)
	return p
}

func onTrack(consumed, target, meals int) bool {
	if target <= 0 {
		return false
	}
	diff := math.Abs(float64(consumed-target)) / float64(target)
	return diff <= onTrackTolerance && meals >= onTrackMinMeals
}

func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
