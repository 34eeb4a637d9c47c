package nutrition

import (
	"math"

	"diet-agent/internal/user"
)

// MacroTargets are the derived daily energy and macro goals.
type MacroTargets struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// Energy returns the caloric equivalent of the macro grams.
func (m MacroTargets) Energy() int {
	return 4*m.Protein + 4*m.Carbs + 9*m.Fat
}

// Ratio is a protein/carbs/fat split of total energy. The shares sum to 1.
type Ratio struct {
	Protein float64
	Carbs   float64
	Fat     float64
}

var activityMultipliers = map[user.ActivityLevel]float64{
	user.ActivitySedentary:  1.2,
	user.ActivityLight:      1.375,
	user.ActivityModerate:   1.55,
	user.ActivityActive:     1.725,
	user.ActivityVeryActive: 1.9,
}

var goalMultipliers = map[user.GoalType]float64{
	user.GoalWeightLoss:          0.80,
	user.GoalMuscleGain:          1.15,
	user.GoalMaintenance:         1.00,
	user.GoalKeto:                0.85,
	user.GoalIntermittentFasting: 0.90,
}

var macroRatios = map[user.GoalType]Ratio{
	user.GoalWeightLoss:          {Protein: 0.35, Carbs: 0.35, Fat: 0.30},
	user.GoalMuscleGain:          {Protein: 0.30, Carbs: 0.45, Fat: 0.25},
	user.GoalMaintenance:         {Protein: 0.25, Carbs: 0.50, Fat: 0.25},
	user.GoalKeto:                {Protein: 0.25, Carbs: 0.05, Fat: 0.70},
	user.GoalIntermittentFasting: {Protein: 0.30, Carbs: 0.40, Fat: 0.30},
}

// ActivityMultiplier returns the TDEE coefficient of an activity level.
func ActivityMultiplier(level user.ActivityLevel) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return activityMultipliers[user.ActivityModerate]
}

// MacroRatio returns the energy split for a goal.
func MacroRatio(goal user.GoalType) Ratio {
	if r, ok := macroRatios[goal]; ok {
		return r
	}
	return macroRatios[user.GoalMaintenance]
}

// BMR estimates basal metabolic rate with the Mifflin-St Jeor equation.
func BMR(weightKG, heightCM float64, age int, gender user.Gender) int {
	base := 10*weightKG + 6.25*heightCM - 5*float64(age)
	switch gender {
	case user.GenderMale:
		return int(math.Round(base + 5))
	case user.GenderFemale:
		return int(math.Round(base - 161))
	default:
		return int(math.Round(base + (5-161)/2.0))
	}
}

// TDEE applies the activity coefficient to a BMR.
func TDEE(bmr int, level user.ActivityLevel) int {
	return int(math.Round(float64(bmr) * ActivityMultiplier(level)))
}

// ComputeTargets derives the daily targets of a profile. Invalid profiles are rejected with
// *user.InvalidProfileError.
func ComputeTargets(p user.Profile) (MacroTargets, error) {
	if err := p.Validate(); err != nil {
		return MacroTargets{}, err
	}

	energy := p.CustomCalories
	if energy == 0 {
		tdee := TDEE(BMR(p.WeightKG, p.HeightCM, p.Age, p.Gender), p.ActivityLevel)
		energy = int(math.Round(float64(tdee) * goalMultipliers[p.GoalType]))
	}

	return SplitMacros(energy, MacroRatio(p.GoalType)), nil
}

// SplitMacros turns an energy total into rounded macro grams. Calories is re-derived from the
// rounded grams so the two never disagree.
func SplitMacros(energy int, r Ratio) MacroTargets {
	e := float64(energy)
	m := MacroTargets{
		Protein: int(math.Round(e * r.Protein / 4)),
		Carbs:   int(math.Round(e * r.Carbs / 4)),
		Fat:     int(math.Round(e * r.Fat / 9)),
	}
	m.Calories = m.Energy()
	return m
}

// WaterTargetML is the daily water goal: 30 ml per kg, more for active users.
func WaterTargetML(weightKG float64, level user.ActivityLevel) int {
	target := int(math.Round(weightKG * 30))
	switch level {
	case user.ActivityActive:
		target += 500
	case user.ActivityVeryActive:
		target += 1000
	}
	return target
}
