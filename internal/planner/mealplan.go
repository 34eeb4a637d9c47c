package planner

import (
	"fmt"
	"time"

	"diet-agent/internal/nutrition"
)

// totalsTolerance is the slack allowed between stored totals and the sum of the meals.
const totalsTolerance = 1

// MealItem is a single dish of a plan.
type MealItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Ingredients []string `json:"ingredients"`
	Calories    int      `json:"calories"`
	Protein     int      `json:"protein"`
	Carbs       int      `json:"carbs"`
	Fat         int      `json:"fat"`
	PrepMinutes int      `json:"prep_time_minutes,omitempty"`
}

// ShoppingItem is a line of the plan's shopping list.
type ShoppingItem struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Category string `json:"category,omitempty"`
}

// DayPlan is the meal plan of one user for one calendar date.
type DayPlan struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Date         string                 `json:"date"`
	Meals        map[string]MealItem    `json:"meals"`
	Snacks       []MealItem             `json:"snacks"`
	ShoppingList []ShoppingItem         `json:"shopping_list"`
	Totals       nutrition.MacroTargets `json:"totals"`
	Targets      nutrition.MacroTargets `json:"targets"`
	Strategy     string                 `json:"strategy"`
	FellBack     bool                   `json:"fell_back,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewDayPlan assembles a plan from a proposal and computes its totals.
func NewDayPlan(id, userID, date string, p *Proposal, targets nutrition.MacroTargets, strategy string, createdAt time.Time) (*DayPlan, error) {
	if p == nil {
		return nil, fmt.Errorf("empty proposal")
	}
	plan := &DayPlan{
		ID:           id,
		UserID:       userID,
		Date:         date,
		Meals:        p.Meals,
		Snacks:       p.Snacks,
		ShoppingList: p.ShoppingList,
		Targets:      targets,
		Strategy:     strategy,
		CreatedAt:    createdAt.UTC(),
	}
	if plan.Meals == nil {
		plan.Meals = map[string]MealItem{}
	}
	if plan.Snacks == nil {
		plan.Snacks = []MealItem{}
	}
	if len(plan.ShoppingList) == 0 {
		plan.ShoppingList = BuildShoppingList(plan.Items())
	}
	if len(plan.Meals) == 0 && len(plan.Snacks) == 0 {
		return nil, fmt.Errorf("plan for %s has no meals", date)
	}
	plan.Totals = sumItems(plan.Items())
	return plan, nil
}

// Items returns every dish of the plan in day order.
func (p *DayPlan) Items() []MealItem {
	var items []MealItem
	for _, slot := range []string{nutrition.SlotBreakfast, nutrition.SlotLunch, nutrition.SlotDinner} {
		if m, ok := p.Meals[slot]; ok {
			items = append(items, m)
		}
	}
	return append(items, p.Snacks...)
}

// CheckTotals verifies that the stored totals match the sum of the meals.
func (p *DayPlan) CheckTotals() error {
	sum := sumItems(p.Items())
	if abs(sum.Calories-p.Totals.Calories) > totalsTolerance ||
		abs(sum.Protein-p.Totals.Protein) > totalsTolerance ||
		abs(sum.Carbs-p.Totals.Carbs) > totalsTolerance ||
		abs(sum.Fat-p.Totals.Fat) > totalsTolerance {
		return fmt.Errorf("plan %s totals %+v do not match meal sum %+v", p.ID, p.Totals, sum)
	}
	return nil
}

// MealNames lists the names of all dishes, used for recency ordering.
func (p *DayPlan) MealNames() []string {
	var names []string
	for _, m := range p.Items() {
		names = append(names, m.Name)
	}
	return names
}

func sumItems(items []MealItem) nutrition.MacroTargets {
	var t nutrition.MacroTargets
	for _, m := range items {
		t.Calories += m.Calories
		t.Protein += m.Protein
		t.Carbs += m.Carbs
		t.Fat += m.Fat
	}
	return t
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
