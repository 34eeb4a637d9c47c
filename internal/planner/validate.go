package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"diet-agent/internal/nutrition"
)

// calorieTolerance is how far a generated plan may drift from the calorie target.
const calorieTolerance = 0.20

type rawItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Calories    *float64 `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fat         *float64 `json:"fat"`
	PrepMinutes *float64 `json:"prep_time_minutes"`
}

type rawPlan struct {
	Meals        map[string]rawItem `json:"meals"`
	Snacks       []rawItem          `json:"snacks"`
	ShoppingList []ShoppingItem     `json:"shopping_list"`
}

// cleanResponse strips markdown fences and anything around the outermost JSON object.
func cleanResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end != -1 && end > start {
		response = response[start : end+1]
	}
	return response
}

func decodeRawPlan(content string) (*rawPlan, error) {
	cleaned := cleanResponse(content)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}
	var raw rawPlan
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse plan %w: %s", err, truncate(cleaned, 200))
	}
	return &raw, nil
}

// validateRawPlan applies the same shape contract the template strategy satisfies by construction.
func validateRawPlan(raw *rawPlan, shares []nutrition.Share, ex Exclusions, targets nutrition.MacroTargets) (*Proposal, error) {
	var problems []error
	p := &Proposal{Meals: map[string]MealItem{}, Snacks: []MealItem{}}

	for slot, ri := range raw.Meals {
		slot = strings.ToLower(strings.TrimSpace(slot))
		item, err := convertItem(slot, ri, ex)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		switch {
		case nutrition.IsSnack(slot):
			p.Snacks = append(p.Snacks, item)
		case slot == nutrition.SlotBreakfast || slot == nutrition.SlotLunch || slot == nutrition.SlotDinner:
			p.Meals[slot] = item
		default:
			problems = append(problems, fmt.Errorf("unknown slot %q", slot))
		}
	}
	for i, ri := range raw.Snacks {
		item, err := convertItem(fmt.Sprintf("snacks[%d]", i), ri, ex)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		p.Snacks = append(p.Snacks, item)
	}

	wantSnack := false
	for _, s := range shares {
		if nutrition.IsSnack(s.Slot) {
			wantSnack = true
			continue
		}
		if _, ok := p.Meals[s.Slot]; !ok {
			problems = append(problems, fmt.Errorf("missing slot %s", s.Slot))
		}
	}
	if wantSnack && len(p.Snacks) == 0 {
		problems = append(problems, errors.New("missing snacks"))
	}

	for _, si := range raw.ShoppingList {
		name := strings.TrimSpace(si.Name)
		if name == "" {
			continue
		}
		if why, bad := ex.Violation(name); bad {
			problems = append(problems, fmt.Errorf("shopping list: %s", why))
			continue
		}
		p.ShoppingList = append(p.ShoppingList, ShoppingItem{Name: name, Quantity: si.Quantity, Category: si.Category})
	}

	if len(problems) == 0 && targets.Calories > 0 {
		total := 0
		for _, m := range p.Meals {
			total += m.Calories
		}
		for _, m := range p.Snacks {
			total += m.Calories
		}
		drift := math.Abs(float64(total-targets.Calories)) / float64(targets.Calories)
		if drift > calorieTolerance {
			problems = append(problems, fmt.Errorf("plan has %d kcal for a %d kcal target", total, targets.Calories))
		}
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return p, nil
}

// maxItemValue bounds every numeric field of a single item.
const maxItemValue = 10000

func convertItem(slot string, ri rawItem, ex Exclusions) (MealItem, error) {
	name := strings.TrimSpace(ri.Name)
	if name == "" {
		return MealItem{}, fmt.Errorf("%s: missing name", slot)
	}
	if why, bad := ex.Violation(name); bad {
		return MealItem{}, fmt.Errorf("%s: %s", slot, why)
	}
	var ingredients []string
	for _, ing := range ri.Ingredients {
		ing = strings.TrimSpace(ing)
		if ing == "" {
			continue
		}
		if why, bad := ex.Violation(ing); bad {
			return MealItem{}, fmt.Errorf("%s: %s", slot, why)
		}
		ingredients = append(ingredients, ing)
	}

	item := MealItem{Name: name, Description: strings.TrimSpace(ri.Description), Ingredients: ingredients}
	fields := []struct {
		name     string
		value    *float64
		dst      *int
		required bool
	}{
		{"calories", ri.Calories, &item.Calories, true},
		{"protein", ri.Protein, &item.Protein, true},
		{"carbs", ri.Carbs, &item.Carbs, true},
		{"fat", ri.Fat, &item.Fat, true},
		{"prep_time_minutes", ri.PrepMinutes, &item.PrepMinutes, false},
	}
	for _, f := range fields {
		if f.value == nil {
			if f.required {
				return MealItem{}, fmt.Errorf("%s: missing %s", slot, f.name)
			}
			continue
		}
		v := *f.value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return MealItem{}, fmt.Errorf("%s: %s must be a non-negative number, got %v", slot, f.name, v)
		}
		if v > maxItemValue {
			return MealItem{}, fmt.Errorf("%s: %s must be at most %d, got %v", slot, f.name, maxItemValue, v)
		}
		*f.dst = int(math.Round(v))
	}
	return item, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
