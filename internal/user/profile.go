package user

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Gender drives the sex constant of the energy estimate.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ActivityLevel is one of five ordered activity bands.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// ActivityLevels lists the bands from least to most active.
var ActivityLevels = []ActivityLevel{ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive}

// GoalType is the user's dietary goal.
type GoalType string

const (
	GoalWeightLoss          GoalType = "weight_loss"
	GoalMuscleGain          GoalType = "muscle_gain"
	GoalMaintenance         GoalType = "maintenance"
	GoalKeto                GoalType = "keto"
	GoalIntermittentFasting GoalType = "intermittent_fasting"
)

// GoalTypes is the fixed goal enumeration.
var GoalTypes = []GoalType{GoalWeightLoss, GoalMuscleGain, GoalMaintenance, GoalKeto, GoalIntermittentFasting}

// Budget is the spending tier used to filter meal templates.
type Budget string

const (
	BudgetCheap    Budget = "cheap"
	BudgetModerate Budget = "moderate"
	BudgetFlexible Budget = "flexible"
)

// Profile is a user's biometric and goal data. It is only changed by the user.
type Profile struct {
	ID                 string        `json:"id"`
	TelegramID         int64         `json:"telegram_id"`
	Name               string        `json:"name,omitempty"`
	Age                int           `json:"age,omitempty"`
	Gender             Gender        `json:"gender,omitempty"`
	HeightCM           float64       `json:"height_cm,omitempty"`
	WeightKG           float64       `json:"weight_kg,omitempty"`
	ActivityLevel      ActivityLevel `json:"activity_level,omitempty"`
	GoalType           GoalType      `json:"goal_type,omitempty"`
	MealFrequency      int           `json:"meal_frequency,omitempty"`
	Restrictions       []string      `json:"restrictions,omitempty"`
	CuisinePreferences []string      `json:"cuisine_preferences,omitempty"`
	Budget             Budget        `json:"budget,omitempty"`
	CustomCalories     int           `json:"custom_calories,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ErrInvalidProfile is matched by every InvalidProfileError.
var ErrInvalidProfile = errors.New("invalid profile")

// InvalidProfileError lists the profile fields that are missing or out of range.
type InvalidProfileError struct {
	Fields []string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid profile: %s", strings.Join(e.Fields, "; "))
}

func (e *InvalidProfileError) Is(target error) bool {
	return target == ErrInvalidProfile
}

// Validate checks the fields needed to compute nutrition targets. Ranges are written so NaN fails.
func (p Profile) Validate() error {
	var fields []string
	if !(p.Age >= 10 && p.Age <= 120) {
		fields = append(fields, fmt.Sprintf("age must be between 10 and 120, got %d", p.Age))
	}
	if !(p.HeightCM >= 50 && p.HeightCM <= 300) {
		fields = append(fields, fmt.Sprintf("height must be between 50 and 300 cm, got %g", p.HeightCM))
	}
	if !(p.WeightKG >= 20 && p.WeightKG <= 500) {
		fields = append(fields, fmt.Sprintf("weight must be between 20 and 500 kg, got %g", p.WeightKG))
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		fields = append(fields, fmt.Sprintf("unknown gender %q", p.Gender))
	}
	if !slices.Contains(ActivityLevels, p.ActivityLevel) {
		fields = append(fields, fmt.Sprintf("unknown activity level %q", p.ActivityLevel))
	}
	if !slices.Contains(GoalTypes, p.GoalType) {
		fields = append(fields, fmt.Sprintf("unknown goal type %q", p.GoalType))
	}
	if p.MealFrequency != 0 && (p.MealFrequency < 1 || p.MealFrequency > 8) {
		fields = append(fields, fmt.Sprintf("meal frequency must be between 1 and 8, got %d", p.MealFrequency))
	}
	switch p.Budget {
	case "", BudgetCheap, BudgetModerate, BudgetFlexible:
	default:
		fields = append(fields, fmt.Sprintf("unknown budget %q", p.Budget))
	}
	if p.CustomCalories < 0 {
		fields = append(fields, "custom calories must not be negative")
	}
	if len(fields) > 0 {
		return &InvalidProfileError{Fields: fields}
	}
	return nil
}

// Meals returns the meal frequency, defaulting to three.
func (p Profile) Meals() int {
	if p.MealFrequency == 0 {
		return 3
	}
	return p.MealFrequency
}

// BudgetTier returns the budget, defaulting to moderate.
func (p Profile) BudgetTier() Budget {
	if p.Budget == "" {
		return BudgetModerate
	}
	return p.Budget
}

// AddRestriction adds a normalised restriction tag and reports whether it was new.
func (p *Profile) AddRestriction(tag string) bool {
	tag = NormalizeTag(tag)
	if tag == "" || slices.Contains(p.Restrictions, tag) {
		return false
	}
	p.Restrictions = append(p.Restrictions, tag)
	return true
}

// NormalizeTag lower-cases a tag and joins words with dashes ("Gluten Free" -> "gluten-free").
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, "_", "-")
	return strings.Join(strings.Fields(tag), "-")
}
