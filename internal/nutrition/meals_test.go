package nutrition

import (
	"math"
	"testing"

	"diet-agent/internal/user"
)

func TestMealDistribution_SumsToOne(t *testing.T) {
	goals := []user.GoalType{user.GoalMaintenance, user.GoalIntermittentFasting}
	for _, goal := range goals {
		for freq := 1; freq <= 8; freq++ {
			var sum float64
			seen := map[string]bool{}
			for _, s := range MealDistribution(freq, goal) {
				if seen[s.Slot] {
					t.Errorf("Duplicate slot %s for frequency %d", s.Slot, freq)
				}
				seen[s.Slot] = true
				sum += s.Fraction
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("Expected shares to sum to 1 for %s/%d, got %f", goal, freq, sum)
			}
		}
	}
}

func TestMealDistribution_Shapes(t *testing.T) {
	if got := MealDistribution(1, user.GoalMaintenance); len(got) != 1 || got[0].Slot != SlotDinner {
		t.Errorf("Expected a single dinner, got %+v", got)
	}
	if got := MealDistribution(5, user.GoalMaintenance); len(got) != 6 {
		t.Errorf("Expected 6 slots for five or more meals, got %d", len(got))
	}
	fasting := MealDistribution(3, user.GoalIntermittentFasting)
	for _, s := range fasting {
		if s.Slot == SlotBreakfast {
			t.Errorf("Expected no breakfast while fasting, got %+v", fasting)
		}
	}
}

func TestMealTypeForHour(t *testing.T) {
	cases := map[int]string{7: SlotBreakfast, 12: SlotLunch, 15: MealTypeSnack, 19: SlotDinner}
	for hour, want := range cases {
		if got := MealTypeForHour(hour); got != want {
			t.Errorf("Hour %d: expected %s, got %s", hour, want, got)
		}
	}
}

func TestEstimateFood(t *testing.T) {
	t.Run("Keyword", func(t *testing.T) {
		e := EstimateFood("Grilled Chicken breast")
		if e.Calories != 165 || e.Protein != 31 || e.Matched != "chicken" {
			t.Errorf("Unexpected estimate: %+v", e)
		}
	})
	t.Run("LongerPhraseWins", func(t *testing.T) {
		if e := EstimateFood("a protein bar"); e.Matched != "protein bar" {
			t.Errorf("Expected protein bar, got %+v", e)
		}
	})
	t.Run("Default", func(t *testing.T) {
		if e := EstimateFood("mystery stew"); e != defaultEstimate {
			t.Errorf("Expected default estimate, got %+v", e)
		}
	})
}
