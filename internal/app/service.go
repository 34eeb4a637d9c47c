package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/shared"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

var (
	// ErrUnknownUser is returned for a chat account or ID with no profile.
	ErrUnknownUser = errors.New("unknown user")
	// ErrNoPlannedMeal is returned when a planned meal is logged but today's plan has no such slot.
	ErrNoPlannedMeal = errors.New("no planned meal for slot")
)

// Service is the set of user-facing operations shared by the chat bot, the HTTP API and the CLI.
type Service struct {
	users        *user.Repository
	plans        *planner.PlanRepository
	orchestrator *planner.Orchestrator
	tracker      *tracker.Tracker
	now          func() time.Time
}

// NewService creates a Service.
func NewService(users *user.Repository, plans *planner.PlanRepository, orchestrator *planner.Orchestrator, tr *tracker.Tracker) *Service {
	return &Service{
		users:        users,
		plans:        plans,
		orchestrator: orchestrator,
		tracker:      tr,
		now:          time.Now,
	}
}

// EnsureUser returns the profile of a chat account, creating an empty one on first contact.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, name string) (*user.Profile, bool, error) {
	p, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if p != nil {
		return p, false, nil
	}
	p = &user.Profile{TelegramID: telegramID, Name: name}
	if err := s.users.Save(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// ProfileByTelegramID returns the profile of a chat account or ErrUnknownUser.
func (s *Service) ProfileByTelegramID(ctx context.Context, telegramID int64) (*user.Profile, error) {
	p, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: telegram id %d", ErrUnknownUser, telegramID)
	}
	return p, nil
}

// Profile returns a profile by ID or ErrUnknownUser.
func (s *Service) Profile(ctx context.Context, userID string) (*user.Profile, error) {
	p, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return p, nil
}

// UpdateProfile validates and stores a profile edited by its owner.
func (s *Service) UpdateProfile(ctx context.Context, p *user.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.users.Save(ctx, p)
}

// Avoid adds restriction tags and returns the ones that were new.
func (s *Service) Avoid(ctx context.Context, userID string, tags []string) ([]string, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	var added []string
	for _, tag := range tags {
		if p.AddRestriction(tag) {
			added = append(added, user.NormalizeTag(tag))
		}
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, s.users.Save(ctx, p)
}

// Settings returns the user's settings, defaults included.
func (s *Service) Settings(ctx context.Context, userID string) (user.Settings, error) {
	return s.users.SettingsOrDefault(ctx, userID)
}

// UpdateSettings validates and stores settings.
func (s *Service) UpdateSettings(ctx context.Context, settings user.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.users.SaveSettings(ctx, settings)
}

// Today is the current date in the user's timezone.
func (s *Service) Today(ctx context.Context, userID string) (string, error) {
	settings, err := s.users.SettingsOrDefault(ctx, userID)
	if err != nil {
		return "", err
	}
	return shared.DateOf(s.now(), settings.Location()), nil
}

// Targets computes the current macro and water targets of a user.
func (s *Service) Targets(ctx context.Context, userID string) (nutrition.MacroTargets, int, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nutrition.MacroTargets{}, 0, err
	}
	targets, err := nutrition.ComputeTargets(*p)
	if err != nil {
		return nutrition.MacroTargets{}, 0, err
	}
	return targets, nutrition.WaterTargetML(p.WeightKG, p.ActivityLevel), nil
}

// TodayPlan returns today's plan, generating it when needed.
func (s *Service) TodayPlan(ctx context.Context, userID string) (*planner.DayPlan, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.GetOrCreatePlan(ctx, userID, today)
}

// RegeneratePlan replaces today's plan.
func (s *Service) RegeneratePlan(ctx context.Context, userID string) (*planner.DayPlan, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Regenerate(ctx, userID, today)
}

// StoredPlan returns the stored plan of a date without generating one; nil when there is none.
func (s *Service) StoredPlan(ctx context.Context, userID, date string) (*planner.DayPlan, error) {
	if _, err := shared.ParseDate(date); err != nil {
		return nil, err
	}
	return s.plans.Get(ctx, userID, date)
}

// FoodLog is a food entry as reported by the user. Zero macros are estimated from the description.
type FoodLog struct {
	Description string
	MealType    string
	Calories    int
	Protein     int
	Carbs       int
	Fat         int
	LoggedAt    time.Time
}

// LogFood records a food entry.
func (s *Service) LogFood(ctx context.Context, userID string, f FoodLog) (*tracker.LogEntry, error) {
	e := &tracker.LogEntry{
		UserID:      userID,
		Kind:        tracker.KindFood,
		LoggedAt:    f.LoggedAt,
		MealType:    f.MealType,
		Description: f.Description,
		Calories:    f.Calories,
		Protein:     f.Protein,
		Carbs:       f.Carbs,
		Fat:         f.Fat,
	}
	if f.Calories == 0 && f.Protein == 0 && f.Carbs == 0 && f.Fat == 0 {
		est := nutrition.EstimateFood(f.Description)
		e.Calories, e.Protein, e.Carbs, e.Fat = est.Calories, est.Protein, est.Carbs, est.Fat
	}
	if err := s.tracker.RecordLog(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LogPlannedMeal records today's planned item for slot as eaten.
func (s *Service) LogPlannedMeal(ctx context.Context, userID, slot string) (*tracker.LogEntry, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Get(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: no plan for %s", ErrNoPlannedMeal, today)
	}
	item, ok := plan.Meals[slot]
	if !ok && nutrition.IsSnack(slot) && len(plan.Snacks) > 0 {
		item, ok = plan.Snacks[0], true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPlannedMeal, slot)
	}

	mealType := slot
	if nutrition.IsSnack(slot) {
		mealType = nutrition.MealTypeSnack
	}
	e := &tracker.LogEntry{
		UserID:      userID,
		Kind:        tracker.KindFood,
		Date:        today,
		MealType:    mealType,
		Description: item.Name,
		Calories:    item.Calories,
		Protein:     item.Protein,
		Carbs:       item.Carbs,
		Fat:         item.Fat,
		FromPlan:    true,
	}
	if err := s.tracker.RecordLog(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LogWater records a water intake in millilitres.
func (s *Service) LogWater(ctx context.Context, userID string, ml int, at time.Time) (*tracker.LogEntry, error) {
	e := &tracker.LogEntry{UserID: userID, Kind: tracker.KindWater, WaterML: ml, LoggedAt: at}
	if err := s.tracker.RecordLog(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LogWeight records a weigh-in and makes it the profile weight, so targets follow.
func (s *Service) LogWeight(ctx context.Context, userID string, kg float64, at time.Time) (*tracker.LogEntry, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	e := &tracker.LogEntry{UserID: userID, Kind: tracker.KindWeight, WeightKG: kg, LoggedAt: at}
	if err := s.tracker.RecordLog(ctx, e); err != nil {
		return nil, err
	}
	p.WeightKG = kg
	if err := s.users.Save(ctx, p); err != nil {
		return nil, err
	}
	return e, nil
}

// Progress returns today's progress.
func (s *Service) Progress(ctx context.Context, userID string) (*tracker.DailyProgress, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.tracker.DailyProgress(ctx, userID, today)
}

// WeeklyReport returns the report of the seven days ending today.
func (s *Service) WeeklyReport(ctx context.Context, userID string) (*tracker.WeeklyReport, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.tracker.WeeklyReport(ctx, userID, today)
}

// Streaks returns the user's streaks as of today.
func (s *Service) Streaks(ctx context.Context, userID string) ([]tracker.StreakState, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.tracker.Streaks(ctx, userID, today)
}

// Suggest proposes a meal for slot that fits what is left of today's calories. An empty slot is
// inferred from the local hour.
func (s *Service) Suggest(ctx context.Context, userID, slot string) (planner.MealItem, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return planner.MealItem{}, err
	}
	settings, err := s.users.SettingsOrDefault(ctx, userID)
	if err != nil {
		return planner.MealItem{}, err
	}
	if slot == "" {
		slot = nutrition.MealTypeForHour(s.now().In(settings.Location()).Hour())
	}
	progress, err := s.tracker.DailyProgress(ctx, userID, shared.DateOf(s.now(), settings.Location()))
	if err != nil {
		return planner.MealItem{}, err
	}
	return planner.Suggest(*p, slot, progress.RemainingCalories())
}
