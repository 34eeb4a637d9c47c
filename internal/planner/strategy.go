package planner

import (
	"context"
	"errors"
	"fmt"

	"diet-agent/internal/nutrition"
	"diet-agent/internal/shared"
	"diet-agent/internal/user"
)

var (
	// ErrUnavailable means the strategy could not be reached or refused to run.
	ErrUnavailable = errors.New("strategy unavailable")
	// ErrTimeout means the strategy did not answer within its time bound.
	ErrTimeout = errors.New("strategy timed out")
	// ErrInvalidOutput means the strategy answered with a plan that failed validation.
	ErrInvalidOutput = errors.New("strategy returned invalid output")
	// ErrNoTemplate means the restrictions exclude every template of a slot.
	ErrNoTemplate = errors.New("no meal template satisfies the restrictions")
	// ErrProfileNotFound means the user has no profile yet.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrPersistence wraps failures of the plan store.
	ErrPersistence = errors.New("plan persistence failure")
)

// StrategyError records which strategy failed and how.
type StrategyError struct {
	Strategy string
	Kind     error
	Err      error
}

func (e *StrategyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Strategy, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Strategy, e.Kind, e.Err)
}

func (e *StrategyError) Is(target error) bool {
	return target == e.Kind
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

func strategyErr(strategy string, kind, err error) error {
	return &StrategyError{Strategy: strategy, Kind: kind, Err: err}
}

// Constraints narrow what a strategy may propose.
type Constraints struct {
	Restrictions  []string
	Cuisines      []string
	Budget        user.Budget
	MealFrequency int
	Goal          user.GoalType
}

// ConstraintsFor derives the constraints of a profile.
func ConstraintsFor(p user.Profile) Constraints {
	return Constraints{
		Restrictions:  p.Restrictions,
		Cuisines:      p.CuisinePreferences,
		Budget:        p.BudgetTier(),
		MealFrequency: p.Meals(),
		Goal:          p.GoalType,
	}
}

// Request is the input shared by every strategy.
type Request struct {
	Profile     user.Profile
	Targets     nutrition.MacroTargets
	Constraints Constraints
	// PriorDays holds recent plans of the same user, most recent first.
	PriorDays []DayPlan
	Date      string
}

// Proposal is a strategy's raw day plan before it is stored.
type Proposal struct {
	Meals        map[string]MealItem
	Snacks       []MealItem
	ShoppingList []ShoppingItem
	Meta         shared.AgentMeta
}

// Strategy generates day plans.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Proposal, error)
}
