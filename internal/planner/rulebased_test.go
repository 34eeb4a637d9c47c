package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"diet-agent/internal/nutrition"
	"diet-agent/internal/user"
)

func testProfile() user.Profile {
	return user.Profile{
		ID:            "user-1",
		Age:           30,
		Gender:        user.GenderMale,
		HeightCM:      180,
		WeightKG:      80,
		ActivityLevel: user.ActivityModerate,
		GoalType:      user.GoalWeightLoss,
		MealFrequency: 3,
	}
}

func testRequest(t *testing.T, p user.Profile, prior ...DayPlan) Request {
	t.Helper()
	targets, err := nutrition.ComputeTargets(p)
	if err != nil {
		t.Fatalf("ComputeTargets failed: %v", err)
	}
	return Request{
		Profile:     p,
		Targets:     targets,
		Constraints: ConstraintsFor(p),
		PriorDays:   prior,
		Date:        "2026-03-02",
	}
}

func TestRuleBased_NeverProposesExcludedIngredients(t *testing.T) {
	var restrictionSets [][]string
	for tag := range restrictionClasses {
		restrictionSets = append(restrictionSets, []string{tag})
	}
	restrictionSets = append(restrictionSets,
		[]string{"vegan", "gluten-free"},
		[]string{"vegan", "gluten-free", "nut-free", "soy-free"},
		[]string{"vegetarian", "dairy-free", "egg-free"},
		[]string{"pescatarian", "shellfish-free", "mushrooms"},
	)

	rb := NewRuleBased()
	for _, restrictions := range restrictionSets {
		for _, goal := range user.GoalTypes {
			for freq := 1; freq <= 6; freq++ {
				name := fmt.Sprintf("%v/%s/%d", restrictions, goal, freq)
				t.Run(name, func(t *testing.T) {
					p := testProfile()
					p.Restrictions = restrictions
					p.GoalType = goal
					p.MealFrequency = freq
					req := testRequest(t, p)

					proposal, err := rb.Generate(context.Background(), req)
					if err != nil {
						t.Fatalf("Generate failed: %v", err)
					}

					ex := NewExclusions(restrictions)
					plan, err := NewDayPlan("id", p.ID, req.Date, proposal, req.Targets, rb.Name(), time.Now())
					if err != nil {
						t.Fatalf("NewDayPlan failed: %v", err)
					}
					for _, item := range plan.Items() {
						if !ex.Allows(append([]string{item.Name}, item.Ingredients...)...) {
							t.Errorf("Item %q with %v violates %v", item.Name, item.Ingredients, restrictions)
						}
					}
					for _, si := range plan.ShoppingList {
						if why, bad := ex.Violation(si.Name); bad {
							t.Errorf("Shopping list violates %v: %s", restrictions, why)
						}
					}
					if plan.Totals != req.Targets {
						t.Errorf("Expected totals %+v to equal targets %+v", plan.Totals, req.Targets)
					}
				})
			}
		}
	}
}

func TestRuleBased_Deterministic(t *testing.T) {
	rb := NewRuleBased()
	req := testRequest(t, testProfile())

	a, err := rb.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, _ := rb.Generate(context.Background(), req)
	for slot, m := range a.Meals {
		if b.Meals[slot].Name != m.Name {
			t.Errorf("Expected %s to be %q on both runs, got %q", slot, m.Name, b.Meals[slot].Name)
		}
	}
}

func TestRuleBased_RotatesLeastRecentlyUsed(t *testing.T) {
	rb := NewRuleBased()
	p := testProfile()

	var prior []DayPlan
	seen := map[string]bool{}
	for day := 0; day < 4; day++ {
		req := testRequest(t, p, prior...)
		proposal, err := rb.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate failed on day %d: %v", day, err)
		}
		breakfast := proposal.Meals[nutrition.SlotBreakfast].Name
		if seen[breakfast] {
			t.Errorf("Day %d repeated breakfast %q within four days", day, breakfast)
		}
		seen[breakfast] = true

		plan, err := NewDayPlan(fmt.Sprint(day), p.ID, req.Date, proposal, req.Targets, rb.Name(), time.Now())
		if err != nil {
			t.Fatalf("NewDayPlan failed: %v", err)
		}
		prior = append([]DayPlan{*plan}, prior...)
	}
}

func TestRuleBased_DistinctDishesWithinDay(t *testing.T) {
	rb := NewRuleBased()
	p := testProfile()
	p.MealFrequency = 6
	proposal, err := rb.Generate(context.Background(), testRequest(t, p))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(proposal.Snacks) != 3 {
		t.Fatalf("Expected 3 snacks, got %d", len(proposal.Snacks))
	}
	names := map[string]bool{}
	for _, s := range proposal.Snacks {
		if names[s.Name] {
			t.Errorf("Snack %q used twice in one day", s.Name)
		}
		names[s.Name] = true
	}
}

func TestRuleBased_CuisinePreferenceIsSoft(t *testing.T) {
	rb := NewRuleBased()
	p := testProfile()
	p.CuisinePreferences = []string{"Indian"}
	proposal, err := rb.Generate(context.Background(), testRequest(t, p))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := proposal.Meals[nutrition.SlotBreakfast].Name; got != "Idli with Sambar" {
		t.Errorf("Expected the first Indian breakfast, got %q", got)
	}

	p.CuisinePreferences = []string{"klingon"}
	if _, err := rb.Generate(context.Background(), testRequest(t, p)); err != nil {
		t.Errorf("Expected an unknown cuisine to be ignored, got %v", err)
	}
}

func TestRuleBased_NoTemplate(t *testing.T) {
	rb := NewRuleBased()
	p := testProfile()
	p.Restrictions = []string{"vegan", "gluten-free", "nut-free", "soy-free", "onion", "oats", "apple", "rice"}

	_, err := rb.Generate(context.Background(), testRequest(t, p))
	if !errors.Is(err, ErrNoTemplate) {
		t.Fatalf("Expected ErrNoTemplate, got %v", err)
	}
	var se *StrategyError
	if !errors.As(err, &se) || se.Strategy != StrategyRuleBased {
		t.Errorf("Expected a StrategyError from %s, got %v", StrategyRuleBased, err)
	}
}

func TestSplitTargets(t *testing.T) {
	targets := nutrition.MacroTargets{Calories: 2001, Protein: 151, Carbs: 203, Fat: 67}
	for freq := 1; freq <= 6; freq++ {
		shares := nutrition.MealDistribution(freq, user.GoalMaintenance)
		var sum nutrition.MacroTargets
		for _, part := range splitTargets(targets, shares) {
			if part.Calories < 0 || part.Protein < 0 || part.Carbs < 0 || part.Fat < 0 {
				t.Errorf("Negative portion %+v for frequency %d", part, freq)
			}
			sum.Calories += part.Calories
			sum.Protein += part.Protein
			sum.Carbs += part.Carbs
			sum.Fat += part.Fat
		}
		if sum != targets {
			t.Errorf("Frequency %d: expected portions to sum to %+v, got %+v", freq, targets, sum)
		}
	}
}

func TestSuggest(t *testing.T) {
	p := testProfile()
	p.Restrictions = []string{"vegan"}

	item, err := Suggest(p, "snack", 150)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if item.Name != "Hummus with Veggies" {
		t.Errorf("Expected Hummus with Veggies, got %q", item.Name)
	}
}

func TestBuildShoppingList(t *testing.T) {
	items := []MealItem{
		{Name: "A", Ingredients: []string{"chicken breast", "olive oil", "spinach"}},
		{Name: "B", Ingredients: []string{"Olive Oil", "whole wheat pasta", "greek yogurt"}},
	}

	list := BuildShoppingList(items)

	want := []ShoppingItem{
		{Name: "chicken breast", Quantity: "for 1 meal", Category: CategoryProtein},
		{Name: "olive oil", Quantity: "for 2 meals", Category: CategoryPantry},
		{Name: "spinach", Quantity: "for 1 meal", Category: CategoryProduce},
		{Name: "whole wheat pasta", Quantity: "for 1 meal", Category: CategoryGrains},
		{Name: "greek yogurt", Quantity: "for 1 meal", Category: CategoryDairy},
	}
	if len(list) != len(want) {
		t.Fatalf("Expected %d items, got %d: %+v", len(want), len(list), list)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("Item %d: expected %+v, got %+v", i, want[i], list[i])
		}
	}
}
