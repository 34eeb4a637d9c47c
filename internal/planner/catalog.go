package planner

import (
	"slices"

	"diet-agent/internal/nutrition"
	"diet-agent/internal/user"
)

// mealTemplate is one serving of a catalog dish.
type mealTemplate struct {
	Name        string
	Kind        string
	Calories    int
	Protein     int
	Carbs       int
	Fat         int
	Ingredients []string
	Cuisines    []string
	Cost        user.Budget
	PrepMinutes int
}

const (
	kindBreakfast = nutrition.SlotBreakfast
	kindLunch     = nutrition.SlotLunch
	kindDinner    = nutrition.SlotDinner
	kindSnack     = nutrition.MealTypeSnack
)

var catalog = []mealTemplate{
	// Breakfast
	{"Oatmeal with Berries", kindBreakfast, 350, 12, 55, 8, []string{"rolled oats", "mixed berries", "oat milk", "chia seeds", "maple syrup"}, []string{"american", "any"}, user.BudgetCheap, 10},
	{"Scrambled Eggs with Toast", kindBreakfast, 400, 20, 30, 22, []string{"eggs", "whole wheat toast", "butter", "chives"}, []string{"american", "any"}, user.BudgetCheap, 10},
	{"Greek Yogurt Parfait", kindBreakfast, 300, 18, 40, 8, []string{"greek yogurt", "granola", "honey", "strawberries"}, []string{"mediterranean", "any"}, user.BudgetModerate, 5},
	{"Avocado Toast", kindBreakfast, 320, 8, 35, 18, []string{"sourdough bread", "avocado", "cherry tomatoes", "lemon juice", "chili flakes"}, []string{"american", "any"}, user.BudgetModerate, 10},
	{"Idli with Sambar", kindBreakfast, 280, 10, 50, 4, []string{"rice idli", "toor dal", "tamarind", "mixed vegetables", "curry leaves"}, []string{"indian"}, user.BudgetCheap, 25},
	{"Poha", kindBreakfast, 250, 6, 45, 6, []string{"flattened rice", "peanuts", "onion", "turmeric", "curry leaves"}, []string{"indian"}, user.BudgetCheap, 15},
	{"Smoothie Bowl", kindBreakfast, 380, 15, 60, 10, []string{"banana", "frozen berries", "soy milk", "pumpkin seeds", "coconut flakes"}, []string{"any"}, user.BudgetModerate, 10},
	{"Besan Chilla", kindBreakfast, 300, 14, 38, 9, []string{"chickpea flour", "onion", "tomato", "spinach", "cumin", "olive oil"}, []string{"indian"}, user.BudgetCheap, 15},
	{"Fruit and Seed Bowl", kindBreakfast, 280, 7, 45, 9, []string{"apple", "banana", "pumpkin seeds", "sunflower seeds", "cinnamon"}, []string{"any"}, user.BudgetCheap, 5},

	// Lunch
	{"Grilled Chicken Salad", kindLunch, 450, 35, 20, 25, []string{"chicken breast", "mixed greens", "cucumber", "cherry tomatoes", "olive oil", "lemon juice"}, []string{"american", "any"}, user.BudgetModerate, 20},
	{"Quinoa Buddha Bowl", kindLunch, 500, 18, 65, 18, []string{"quinoa", "chickpeas", "sweet potato", "kale", "tahini"}, []string{"any"}, user.BudgetModerate, 25},
	{"Turkey Wrap", kindLunch, 420, 28, 40, 16, []string{"whole wheat wrap", "turkey breast", "lettuce", "tomato", "mustard"}, []string{"american", "any"}, user.BudgetModerate, 10},
	{"Dal with Rice", kindLunch, 480, 16, 70, 12, []string{"red lentils", "basmati rice", "onion", "garlic", "turmeric", "cumin"}, []string{"indian"}, user.BudgetCheap, 30},
	{"Mediterranean Bowl", kindLunch, 520, 22, 55, 24, []string{"bulgur wheat", "chickpeas", "feta cheese", "cucumber", "olives", "olive oil"}, []string{"mediterranean"}, user.BudgetModerate, 20},
	{"Stir Fry with Tofu", kindLunch, 400, 20, 45, 15, []string{"firm tofu", "brown rice", "broccoli", "bell pepper", "tamari", "ginger"}, []string{"asian", "any"}, user.BudgetCheap, 20},
	{"Chicken Tikka with Roti", kindLunch, 550, 35, 50, 20, []string{"chicken thighs", "yogurt", "tikka spices", "whole wheat roti"}, []string{"indian"}, user.BudgetModerate, 35},
	{"Black Bean Burrito Bowl", kindLunch, 480, 18, 72, 12, []string{"black beans", "brown rice", "corn", "salsa", "avocado", "lime"}, []string{"mexican", "any"}, user.BudgetCheap, 15},

	// Dinner
	{"Baked Salmon with Vegetables", kindDinner, 500, 40, 25, 28, []string{"salmon fillet", "broccoli", "carrots", "olive oil", "lemon", "dill"}, []string{"any"}, user.BudgetFlexible, 30},
	{"Chicken Stir Fry", kindDinner, 480, 35, 40, 18, []string{"chicken breast", "jasmine rice", "snap peas", "bell pepper", "soy sauce", "garlic"}, []string{"asian", "any"}, user.BudgetModerate, 25},
	{"Vegetable Curry with Rice", kindDinner, 520, 14, 75, 16, []string{"mixed vegetables", "coconut milk", "basmati rice", "curry paste", "onion"}, []string{"indian"}, user.BudgetCheap, 35},
	{"Grilled Steak with Sweet Potato", kindDinner, 600, 45, 40, 28, []string{"sirloin steak", "sweet potato", "green beans", "olive oil", "garlic"}, []string{"american", "any"}, user.BudgetFlexible, 30},
	{"Pasta Primavera", kindDinner, 480, 16, 70, 14, []string{"whole wheat pasta", "zucchini", "cherry tomatoes", "parmesan cheese", "olive oil", "basil"}, []string{"italian", "any"}, user.BudgetCheap, 25},
	{"Fish Tacos", kindDinner, 450, 28, 45, 18, []string{"white fish", "corn tortilla", "cabbage slaw", "lime", "avocado"}, []string{"mexican", "any"}, user.BudgetModerate, 25},
	{"Palak Paneer with Naan", kindDinner, 550, 22, 55, 26, []string{"spinach", "paneer", "naan", "onion", "garam masala", "cream"}, []string{"indian"}, user.BudgetModerate, 35},
	{"Lentil and Vegetable Stew", kindDinner, 450, 22, 68, 8, []string{"green lentils", "carrots", "celery", "tomatoes", "potatoes", "olive oil"}, []string{"any"}, user.BudgetCheap, 40},

	// Snacks
	{"Apple with Almond Butter", kindSnack, 200, 5, 25, 10, []string{"apple", "almond butter"}, []string{"any"}, user.BudgetCheap, 2},
	{"Greek Yogurt", kindSnack, 150, 15, 10, 5, []string{"greek yogurt"}, []string{"any"}, user.BudgetCheap, 1},
	{"Mixed Nuts", kindSnack, 180, 5, 8, 16, []string{"mixed nuts"}, []string{"any"}, user.BudgetModerate, 1},
	{"Hummus with Veggies", kindSnack, 150, 6, 15, 8, []string{"hummus", "carrot sticks", "cucumber"}, []string{"mediterranean", "any"}, user.BudgetCheap, 5},
	{"Protein Bar", kindSnack, 200, 20, 22, 8, []string{"whey protein", "oats", "dark chocolate"}, []string{"any"}, user.BudgetModerate, 1},
	{"Roasted Chickpeas", kindSnack, 130, 6, 20, 3, []string{"chickpeas", "olive oil", "smoked paprika"}, []string{"indian", "any"}, user.BudgetCheap, 30},
	{"Fresh Fruit Cup", kindSnack, 120, 2, 30, 0, []string{"orange", "grapes", "kiwi"}, []string{"any"}, user.BudgetCheap, 5},
}

// kindForSlot maps a distribution slot to the template kind that fills it.
func kindForSlot(slot string) string {
	if nutrition.IsSnack(slot) {
		return kindSnack
	}
	return slot
}

func (t mealTemplate) texts() []string {
	return append([]string{t.Name}, t.Ingredients...)
}

// matchesCuisine accepts templates tagged "any" as well as the preferred cuisines.
func (t mealTemplate) matchesCuisine(cuisines []string) bool {
	if len(cuisines) == 0 || slices.Contains(t.Cuisines, "any") {
		return true
	}
	return t.prefersCuisine(cuisines)
}

// prefersCuisine reports an explicit match with one of the preferred cuisines.
func (t mealTemplate) prefersCuisine(cuisines []string) bool {
	for _, c := range cuisines {
		if slices.Contains(t.Cuisines, user.NormalizeTag(c)) {
			return true
		}
	}
	return false
}

var budgetRank = map[user.Budget]int{user.BudgetCheap: 0, user.BudgetModerate: 1, user.BudgetFlexible: 2}

func (t mealTemplate) withinBudget(b user.Budget) bool {
	return budgetRank[t.Cost] <= budgetRank[b]
}

// candidates returns the templates of a kind that survive the restrictions. Budget and cuisine
// narrow the list only when something is left afterwards.
func candidates(kind string, ex Exclusions, c Constraints) []mealTemplate {
	var allowed []mealTemplate
	for _, t := range catalog {
		if t.Kind == kind && ex.Allows(t.texts()...) {
			allowed = append(allowed, t)
		}
	}

	narrow := func(in []mealTemplate, keep func(mealTemplate) bool) []mealTemplate {
		var out []mealTemplate
		for _, t := range in {
			if keep(t) {
				out = append(out, t)
			}
		}
		if len(out) == 0 {
			return in
		}
		return out
	}

	allowed = narrow(allowed, func(t mealTemplate) bool { return t.withinBudget(c.Budget) })
	allowed = narrow(allowed, func(t mealTemplate) bool { return t.matchesCuisine(c.Cuisines) })
	return allowed
}
