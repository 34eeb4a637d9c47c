package nutrition

import (
	"strings"

	"diet-agent/internal/user"
)

// Meal slot names.
const (
	SlotBreakfast       = "breakfast"
	SlotMidMorningSnack = "mid_morning_snack"
	SlotLunch           = "lunch"
	SlotAfternoonSnack  = "afternoon_snack"
	SlotDinner          = "dinner"
	SlotEveningSnack    = "evening_snack"
	SlotSnacks          = "snacks"
)

// Meal types of food logs that are not slot names.
const (
	MealTypeSnack = "snack"
	MealTypeOther = "other"
)

const (
	fastingMinMeals      = 3
	fastingSnackShare    = 0.10
	fastingMainMealShare = 0.45
)

// Share is one slot's fraction of daily energy.
type Share struct {
	Slot     string
	Fraction float64
}

// IsSnack reports whether a slot is filled from snack templates.
func IsSnack(slot string) bool {
	return strings.HasSuffix(slot, "snack") || slot == SlotSnacks
}

// MealDistribution splits daily energy across slots for a meal frequency. Fractions sum to 1 and
// the order is the order of the day.
func MealDistribution(frequency int, goal user.GoalType) []Share {
	if goal == user.GoalIntermittentFasting {
		if frequency >= fastingMinMeals {
			return []Share{{SlotLunch, fastingMainMealShare}, {SlotDinner, fastingMainMealShare}, {SlotSnacks, fastingSnackShare}}
		}
		return []Share{{SlotLunch, 0.5}, {SlotDinner, 0.5}}
	}

	switch {
	case frequency <= 1:
		return []Share{{SlotDinner, 1.0}}
	case frequency == 2:
		return []Share{{SlotLunch, 0.45}, {SlotDinner, 0.55}}
	case frequency == 3:
		return []Share{{SlotBreakfast, 0.25}, {SlotLunch, 0.35}, {SlotDinner, 0.40}}
	case frequency == 4:
		return []Share{{SlotBreakfast, 0.20}, {SlotLunch, 0.30}, {SlotDinner, 0.35}, {SlotSnacks, 0.15}}
	default:
		return []Share{
			{SlotBreakfast, 0.20},
			{SlotMidMorningSnack, 0.10},
			{SlotLunch, 0.25},
			{SlotAfternoonSnack, 0.10},
			{SlotDinner, 0.30},
			{SlotEveningSnack, 0.05},
		}
	}
}

// MealTypeForHour guesses the meal type of a log from the local hour.
func MealTypeForHour(hour int) string {
	switch {
	case hour < 10:
		return SlotBreakfast
	case hour < 14:
		return SlotLunch
	case hour < 17:
		return MealTypeSnack
	default:
		return SlotDinner
	}
}

// Estimate is a rough nutrition value for a logged food.
type Estimate struct {
	Calories int
	Protein  int
	Carbs    int
	Fat      int
	Matched  string
}

type foodEstimate struct {
	keyword string
	value   Estimate
}

// Longer phrases come first so "protein bar" wins over a later, shorter keyword.
var foodEstimates = []foodEstimate{
	{"salad bowl", Estimate{Calories: 300, Protein: 15, Carbs: 30, Fat: 12}},
	{"protein bar", Estimate{Calories: 200, Protein: 20, Carbs: 20, Fat: 8}},
	{"chicken", Estimate{Calories: 165, Protein: 31, Carbs: 0, Fat: 4}},
	{"beef", Estimate{Calories: 250, Protein: 26, Carbs: 0, Fat: 15}},
	{"fish", Estimate{Calories: 150, Protein: 25, Carbs: 0, Fat: 5}},
	{"egg", Estimate{Calories: 78, Protein: 6, Carbs: 1, Fat: 5}},
	{"tofu", Estimate{Calories: 80, Protein: 8, Carbs: 2, Fat: 4}},
	{"rice", Estimate{Calories: 200, Protein: 4, Carbs: 45, Fat: 0}},
	{"bread", Estimate{Calories: 80, Protein: 3, Carbs: 15, Fat: 1}},
	{"pasta", Estimate{Calories: 220, Protein: 8, Carbs: 43, Fat: 1}},
	{"potato", Estimate{Calories: 160, Protein: 4, Carbs: 37, Fat: 0}},
	{"oatmeal", Estimate{Calories: 150, Protein: 5, Carbs: 27, Fat: 3}},
	{"milk", Estimate{Calories: 150, Protein: 8, Carbs: 12, Fat: 8}},
	{"yogurt", Estimate{Calories: 100, Protein: 10, Carbs: 6, Fat: 3}},
	{"cheese", Estimate{Calories: 110, Protein: 7, Carbs: 0, Fat: 9}},
	{"salad", Estimate{Calories: 50, Protein: 2, Carbs: 10, Fat: 0}},
	{"vegetables", Estimate{Calories: 50, Protein: 2, Carbs: 10, Fat: 0}},
	{"broccoli", Estimate{Calories: 55, Protein: 4, Carbs: 11, Fat: 1}},
	{"apple", Estimate{Calories: 95, Protein: 0, Carbs: 25, Fat: 0}},
	{"banana", Estimate{Calories: 105, Protein: 1, Carbs: 27, Fat: 0}},
	{"orange", Estimate{Calories: 62, Protein: 1, Carbs: 15, Fat: 0}},
	{"sandwich", Estimate{Calories: 350, Protein: 15, Carbs: 40, Fat: 15}},
	{"burger", Estimate{Calories: 500, Protein: 25, Carbs: 40, Fat: 25}},
	{"pizza", Estimate{Calories: 285, Protein: 12, Carbs: 36, Fat: 10}},
	{"smoothie", Estimate{Calories: 250, Protein: 8, Carbs: 45, Fat: 5}},
	{"nuts", Estimate{Calories: 170, Protein: 5, Carbs: 6, Fat: 15}},
	{"cookie", Estimate{Calories: 150, Protein: 2, Carbs: 20, Fat: 7}},
}

var defaultEstimate = Estimate{Calories: 200, Protein: 10, Carbs: 25, Fat: 8}

// EstimateFood returns a per-serving estimate from a keyword table.
func EstimateFood(description string) Estimate {
	d := strings.ToLower(description)
	for _, f := range foodEstimates {
		if strings.Contains(d, f.keyword) {
			e := f.value
			e.Matched = f.keyword
			return e
		}
	}
	return defaultEstimate
}
