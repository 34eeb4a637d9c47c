package planner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"diet-agent/internal/nutrition"
	"diet-agent/internal/shared"
	"diet-agent/internal/user"
)

// StrategyRuleBased is the name of the always-available template strategy.
const StrategyRuleBased = "rule_based"

// RuleBased builds plans from the built-in template catalog. It never calls out and is
// deterministic for identical requests.
type RuleBased struct{}

// NewRuleBased creates the template strategy.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

func (r *RuleBased) Name() string {
	return StrategyRuleBased
}

// Generate fills every slot of the user's meal distribution with the least recently used template
// that survives the restrictions, scaled to the slot's share of the targets.
func (r *RuleBased) Generate(ctx context.Context, req Request) (*Proposal, error) {
	start := time.Now()
	ex := NewExclusions(req.Constraints.Restrictions)
	recency := recentUse(req.PriorDays)
	chosen := map[string]bool{}

	shares := nutrition.MealDistribution(req.Constraints.MealFrequency, req.Constraints.Goal)
	portions := splitTargets(req.Targets, shares)

	proposal := &Proposal{Meals: map[string]MealItem{}, Snacks: []MealItem{}}
	for i, share := range shares {
		if err := ctx.Err(); err != nil {
			return nil, strategyErr(r.Name(), ErrTimeout, err)
		}

		pool := candidates(kindForSlot(share.Slot), ex, req.Constraints)
		if len(pool) == 0 {
			return nil, strategyErr(r.Name(), ErrNoTemplate, fmt.Errorf("slot %s with restrictions %v", share.Slot, req.Constraints.Restrictions))
		}

		t := leastRecentlyUsed(pool, recency, chosen, req.Constraints.Cuisines)
		chosen[t.Name] = true

		item := t.portion(portions[i])
		if nutrition.IsSnack(share.Slot) {
			proposal.Snacks = append(proposal.Snacks, item)
		} else {
			proposal.Meals[share.Slot] = item
		}
	}

	var items []MealItem
	for _, s := range shares {
		if m, ok := proposal.Meals[s.Slot]; ok {
			items = append(items, m)
		}
	}
	proposal.ShoppingList = BuildShoppingList(append(items, proposal.Snacks...))
	proposal.Meta = shared.AgentMeta{
		AgentName: r.Name(),
		UserID:    req.Profile.ID,
		Latency:   time.Since(start),
	}
	return proposal, nil
}

// splitTargets divides the targets by cumulative share so the slot values add up to the totals
// exactly.
func splitTargets(t nutrition.MacroTargets, shares []nutrition.Share) []nutrition.MacroTargets {
	out := make([]nutrition.MacroTargets, len(shares))
	var cum float64
	var prev nutrition.MacroTargets
	for i, s := range shares {
		cum += s.Fraction
		if i == len(shares)-1 {
			cum = 1
		}
		next := nutrition.MacroTargets{
			Calories: int(math.Round(float64(t.Calories) * cum)),
			Protein:  int(math.Round(float64(t.Protein) * cum)),
			Carbs:    int(math.Round(float64(t.Carbs) * cum)),
			Fat:      int(math.Round(float64(t.Fat) * cum)),
		}
		out[i] = nutrition.MacroTargets{
			Calories: next.Calories - prev.Calories,
			Protein:  next.Protein - prev.Protein,
			Carbs:    next.Carbs - prev.Carbs,
			Fat:      next.Fat - prev.Fat,
		}
		prev = next
	}
	return out
}


// portion sizes a template to a slot target.
func (t mealTemplate) portion(target nutrition.MacroTargets) MealItem {
	servings := 1.0
	if t.Calories > 0 {
		servings = float64(target.Calories) / float64(t.Calories)
	}
	return MealItem{
		Name:        t.Name,
		Description: fmt.Sprintf("%.1f servings, about %d kcal", servings, target.Calories),
		Ingredients: append([]string(nil), t.Ingredients...),
		Calories:    target.Calories,
		Protein:     target.Protein,
		Carbs:       target.Carbs,
		Fat:         target.Fat,
		PrepMinutes: t.PrepMinutes,
	}
}

// recentUse maps a dish name to the index of the most recent prior day it appeared on.
func recentUse(prior []DayPlan) map[string]int {
	seen := map[string]int{}
	for i, p := range prior {
		for _, name := range p.MealNames() {
			if _, ok := seen[name]; !ok {
				seen[name] = i
			}
		}
	}
	return seen
}

// leastRecentlyUsed prefers templates never used, then the ones used longest ago. Ties go to an
// explicit cuisine match and then to catalog order.
func leastRecentlyUsed(pool []mealTemplate, recency map[string]int, chosen map[string]bool, cuisines []string) mealTemplate {
	best := -1
	bestAge := -1
	bestPreferred := false
	for i, t := range pool {
		if chosen[t.Name] {
			continue
		}
		age := math.MaxInt32
		if idx, ok := recency[t.Name]; ok {
			age = idx
		}
		preferred := len(cuisines) > 0 && t.prefersCuisine(cuisines)
		if age > bestAge || (age == bestAge && preferred && !bestPreferred) {
			best, bestAge, bestPreferred = i, age, preferred
		}
	}
	if best < 0 {
		// Everything was already used in this plan; repeat the first allowed template.
		return pool[0]
	}
	return pool[best]
}

// Suggest picks the catalog dish for a slot whose calories are closest to what is left of the day.
func Suggest(p user.Profile, slot string, remainingCalories int) (MealItem, error) {
	c := ConstraintsFor(p)
	pool := candidates(kindForSlot(slot), NewExclusions(c.Restrictions), c)
	if len(pool) == 0 {
		return MealItem{}, fmt.Errorf("%w: slot %s", ErrNoTemplate, slot)
	}

	best := pool[0]
	for _, t := range pool[1:] {
		if abs(t.Calories-remainingCalories) < abs(best.Calories-remainingCalories) {
			best = t
		}
	}
	return MealItem{
		Name:        best.Name,
		Description: fmt.Sprintf("A %s option", strings.ReplaceAll(best.Kind, "_", " ")),
		Ingredients: append([]string(nil), best.Ingredients...),
		Calories:    best.Calories,
		Protein:     best.Protein,
		Carbs:       best.Carbs,
		Fat:         best.Fat,
		PrepMinutes: best.PrepMinutes,
	}, nil
}
