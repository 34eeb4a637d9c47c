package planner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"diet-agent/internal/database"
	"diet-agent/internal/nutrition"
)

func newTestRepository(t *testing.T) *PlanRepository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPlanRepository(db.SQL)
}

func samplePlan(t *testing.T, id, date string) *DayPlan {
	t.Helper()
	proposal := &Proposal{Meals: map[string]MealItem{
		nutrition.SlotLunch:  {Name: "Dal with Rice", Ingredients: []string{"red lentils", "basmati rice"}, Calories: 500, Protein: 20, Carbs: 80, Fat: 10},
		nutrition.SlotDinner: {Name: "Fish Tacos", Ingredients: []string{"white fish", "corn tortilla"}, Calories: 600, Protein: 40, Carbs: 50, Fat: 20},
	}}
	plan, err := NewDayPlan(id, "user-1", date, proposal, nutrition.MacroTargets{Calories: 1100}, StrategyRuleBased, time.Now())
	if err != nil {
		t.Fatalf("NewDayPlan failed: %v", err)
	}
	return plan
}

func TestPlanRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	t.Run("MissingPlan", func(t *testing.T) {
		p, err := repo.Get(ctx, "user-1", "2026-03-01")
		if err != nil || p != nil {
			t.Fatalf("Expected nil, nil for a missing plan, got %v, %v", p, err)
		}
	})

	t.Run("SaveReplacesPerDay", func(t *testing.T) {
		if err := repo.Save(ctx, samplePlan(t, "a", "2026-03-01")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Save(ctx, samplePlan(t, "b", "2026-03-01")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		n, err := repo.Count(ctx, "user-1", "2026-03-01")
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected one plan per day, got %d", n)
		}
		got, err := repo.Get(ctx, "user-1", "2026-03-01")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != "b" {
			t.Errorf("Expected the replacement plan b, got %s", got.ID)
		}
		if got.Totals.Calories != 1100 || len(got.ShoppingList) != 4 {
			t.Errorf("Unexpected round trip: totals %+v, shopping list %+v", got.Totals, got.ShoppingList)
		}
	})

	t.Run("ListRecentAndRange", func(t *testing.T) {
		for _, d := range []string{"2026-03-02", "2026-03-03", "2026-03-05"} {
			if err := repo.Save(ctx, samplePlan(t, d, d)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		recent, err := repo.ListRecent(ctx, "user-1", "2026-03-03", 2)
		if err != nil {
			t.Fatalf("ListRecent failed: %v", err)
		}
		if len(recent) != 2 || recent[0].Date != "2026-03-03" || recent[1].Date != "2026-03-02" {
			t.Errorf("Unexpected recent plans %v", planDates(recent))
		}

		week, err := repo.ListRange(ctx, "user-1", "2026-03-02", "2026-03-08")
		if err != nil {
			t.Fatalf("ListRange failed: %v", err)
		}
		if got := planDates(week); len(got) != 3 || got[0] != "2026-03-02" || got[2] != "2026-03-05" {
			t.Errorf("Unexpected range %v", got)
		}
	})
}

func planDates(plans []DayPlan) []string {
	var out []string
	for _, p := range plans {
		out = append(out, p.Date)
	}
	return out
}
