package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"diet-agent/internal/database"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *user.Profile) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := user.NewRepository(db.SQL)
	plans := planner.NewPlanRepository(db.SQL)
	orch := planner.NewOrchestrator(users, plans, nil, planner.OrchestratorConfig{},
		planner.WithNow(func() time.Time { return testNow }))
	tr := tracker.New(users, plans, tracker.NewLogRepository(db.SQL), tracker.NewStreakRepository(db.SQL), nil, nil)
	svc := NewService(users, plans, orch, tr)
	svc.now = func() time.Time { return testNow }

	ctx := context.Background()
	p, created, err := svc.EnsureUser(ctx, 42, "Sam")
	if err != nil || !created {
		t.Fatalf("EnsureUser failed: %v (created %v)", err, created)
	}
	p.Age, p.Gender, p.HeightCM, p.WeightKG = 30, user.GenderMale, 180, 80
	p.ActivityLevel, p.GoalType = user.ActivityModerate, user.GoalWeightLoss
	if err := svc.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	settings := user.DefaultSettings(p.ID)
	settings.Timezone = "UTC"
	if err := svc.UpdateSettings(ctx, settings); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	return svc, p
}

func TestEnsureUser(t *testing.T) {
	svc, p := newTestService(t)
	again, created, err := svc.EnsureUser(context.Background(), 42, "Sam")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if created || again.ID != p.ID {
		t.Errorf("Expected the existing profile %s, got %s (created %v)", p.ID, again.ID, created)
	}

	if _, err := svc.ProfileByTelegramID(context.Background(), 7); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Expected ErrUnknownUser, got %v", err)
	}
}

func TestUpdateProfile_RejectsInvalid(t *testing.T) {
	svc, p := newTestService(t)
	bad := *p
	bad.Age = 5
	if err := svc.UpdateProfile(context.Background(), &bad); !errors.Is(err, user.ErrInvalidProfile) {
		t.Errorf("Expected ErrInvalidProfile, got %v", err)
	}
}

func TestTargets(t *testing.T) {
	svc, p := newTestService(t)
	targets, water, err := svc.Targets(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if targets.Calories != 2210 {
		t.Errorf("Expected 2210 kcal, got %d", targets.Calories)
	}
	if water <= 0 {
		t.Errorf("Expected a water target, got %d", water)
	}
}

func TestPlanAndLogPlannedMeal(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()

	t.Run("NoPlanYet", func(t *testing.T) {
		if _, err := svc.LogPlannedMeal(ctx, p.ID, nutrition.SlotBreakfast); !errors.Is(err, ErrNoPlannedMeal) {
			t.Errorf("Expected ErrNoPlannedMeal, got %v", err)
		}
	})

	plan, err := svc.TodayPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("TodayPlan failed: %v", err)
	}
	if plan.Date != "2026-03-02" {
		t.Errorf("Expected today's plan, got %s", plan.Date)
	}

	e, err := svc.LogPlannedMeal(ctx, p.ID, nutrition.SlotBreakfast)
	if err != nil {
		t.Fatalf("LogPlannedMeal failed: %v", err)
	}
	if !e.FromPlan || e.Description != plan.Meals[nutrition.SlotBreakfast].Name {
		t.Errorf("Expected the planned breakfast, got %+v", e)
	}

	streaks, err := svc.Streaks(ctx, p.ID)
	if err != nil {
		t.Fatalf("Streaks failed: %v", err)
	}
	found := false
	for _, s := range streaks {
		if s.Type == tracker.StreakPlanFollowing && s.Current == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a plan-following streak of 1, got %+v", streaks)
	}

	stored, err := svc.StoredPlan(ctx, p.ID, "2026-03-02")
	if err != nil || stored == nil || stored.ID != plan.ID {
		t.Errorf("Expected the stored plan, got %v, %v", stored, err)
	}
}

func TestLogFood_EstimatesMissingMacros(t *testing.T) {
	svc, p := newTestService(t)
	e, err := svc.LogFood(context.Background(), p.ID, FoodLog{Description: "  grilled   chicken "})
	if err != nil {
		t.Fatalf("LogFood failed: %v", err)
	}
	if e.Calories != 165 || e.Protein != 31 {
		t.Errorf("Expected the chicken estimate, got %+v", e)
	}
	if e.Description != "grilled chicken" {
		t.Errorf("Expected a normalized description, got %q", e.Description)
	}
	if e.MealType != nutrition.SlotLunch {
		t.Errorf("Expected lunch at noon, got %s", e.MealType)
	}

	explicit, err := svc.LogFood(context.Background(), p.ID, FoodLog{Description: "chicken", Calories: 300, Protein: 40})
	if err != nil {
		t.Fatalf("LogFood failed: %v", err)
	}
	if explicit.Calories != 300 {
		t.Errorf("Expected reported calories to be kept, got %d", explicit.Calories)
	}

	progress, err := svc.Progress(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Consumed.Calories != 465 || progress.MealsLogged != 2 {
		t.Errorf("Expected 465 kcal over 2 meals, got %+v", progress)
	}
}

func TestLogWeight_UpdatesProfile(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()
	if _, err := svc.LogWeight(ctx, p.ID, 78.5, testNow); err != nil {
		t.Fatalf("LogWeight failed: %v", err)
	}
	got, err := svc.Profile(ctx, p.ID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if got.WeightKG != 78.5 {
		t.Errorf("Expected weight 78.5, got %v", got.WeightKG)
	}

	if _, err := svc.LogWeight(ctx, p.ID, 5, testNow); !errors.Is(err, tracker.ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestAvoid(t *testing.T) {
	svc, p := newTestService(t)
	ctx := context.Background()
	added, err := svc.Avoid(ctx, p.ID, []string{"Gluten Free", "mushroom"})
	if err != nil {
		t.Fatalf("Avoid failed: %v", err)
	}
	if len(added) != 2 || added[0] != "gluten-free" {
		t.Errorf("Expected [gluten-free mushroom], got %v", added)
	}
	added, err = svc.Avoid(ctx, p.ID, []string{"gluten_free"})
	if err != nil || len(added) != 0 {
		t.Errorf("Expected nothing new, got %v, %v", added, err)
	}
	got, _ := svc.Profile(ctx, p.ID)
	if len(got.Restrictions) != 2 {
		t.Errorf("Expected 2 restrictions, got %v", got.Restrictions)
	}
}

func TestSuggest(t *testing.T) {
	svc, p := newTestService(t)
	item, err := svc.Suggest(context.Background(), p.ID, "")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if item.Name == "" || item.Calories <= 0 {
		t.Errorf("Expected a suggestion, got %+v", item)
	}
}
