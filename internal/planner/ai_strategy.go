package planner

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"diet-agent/internal/llm"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/shared"
)

//go:embed plan_prompt.md
var planPrompt string

var planTemplate = template.Must(template.New("plan").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(planPrompt))

// recentDaysInPrompt bounds how many prior days are listed in the prompt.
const recentDaysInPrompt = 3

// UsageCounter counts recorded strategy calls, used for the daily per-user quota.
type UsageCounter interface {
	CountSince(ctx context.Context, agentName, userID string, since time.Time) (int, error)
}

// AIStrategy asks a text generator for a day plan and validates the answer before accepting it.
type AIStrategy struct {
	name       string
	model      string
	gen        llm.TextGenerator
	usage      UsageCounter
	dailyLimit int
	now        func() time.Time
}

// AIOption configures an AIStrategy.
type AIOption func(*AIStrategy)

// WithDailyLimit caps the calls per user per UTC day. A limit of zero disables the cap.
func WithDailyLimit(counter UsageCounter, limit int) AIOption {
	return func(s *AIStrategy) {
		s.usage = counter
		s.dailyLimit = limit
	}
}

// WithClock overrides the clock used for quota windows.
func WithClock(now func() time.Time) AIOption {
	return func(s *AIStrategy) {
		s.now = now
	}
}

// NewAIStrategy wraps gen under the given strategy name ("groq", "gemini", "ollama").
func NewAIStrategy(name, model string, gen llm.TextGenerator, opts ...AIOption) *AIStrategy {
	s := &AIStrategy{name: name, model: model, gen: gen, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AIStrategy) Name() string {
	return s.name
}

// Generate renders the prompt, calls the generator and validates the structured answer.
func (s *AIStrategy) Generate(ctx context.Context, req Request) (*Proposal, error) {
	start := time.Now()
	if err := s.checkQuota(ctx, req.Profile.ID); err != nil {
		return nil, err
	}

	shares := nutrition.MealDistribution(req.Constraints.MealFrequency, req.Constraints.Goal)
	ex := NewExclusions(req.Constraints.Restrictions)
	prompt, err := buildPlanPrompt(req, shares, ex)
	if err != nil {
		return nil, strategyErr(s.name, ErrUnavailable, err)
	}

	resp, err := s.gen.GenerateContent(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, strategyErr(s.name, ErrTimeout, err)
		}
		return nil, strategyErr(s.name, ErrUnavailable, err)
	}

	raw, err := decodeRawPlan(resp.Content)
	if err != nil {
		return nil, strategyErr(s.name, ErrInvalidOutput, err)
	}
	proposal, err := validateRawPlan(raw, shares, ex, req.Targets)
	if err != nil {
		return nil, strategyErr(s.name, ErrInvalidOutput, err)
	}

	usage := resp.Usage
	if usage.Model == "" {
		usage.Model = s.model
	}
	proposal.Meta = shared.AgentMeta{
		AgentName: s.name,
		UserID:    req.Profile.ID,
		Usage:     usage,
		Latency:   time.Since(start),
	}
	return proposal, nil
}

func (s *AIStrategy) checkQuota(ctx context.Context, userID string) error {
	if s.usage == nil || s.dailyLimit <= 0 {
		return nil
	}
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	used, err := s.usage.CountSince(ctx, s.name, userID, dayStart)
	if err != nil {
		return strategyErr(s.name, ErrUnavailable, fmt.Errorf("failed to read usage: %w", err))
	}
	if used >= s.dailyLimit {
		return strategyErr(s.name, ErrUnavailable, fmt.Errorf("daily limit of %d calls reached", s.dailyLimit))
	}
	return nil
}

type promptSlot struct {
	Slot     string
	Calories int
}

type promptData struct {
	Goal          string
	MealFrequency int
	Budget        string
	Cuisines      []string
	Restrictions  []string
	Avoid         []string
	Targets       nutrition.MacroTargets
	Slots         []promptSlot
	Recent        []string
}

func buildPlanPrompt(req Request, shares []nutrition.Share, ex Exclusions) (string, error) {
	portions := splitTargets(req.Targets, shares)
	data := promptData{
		Goal:          string(req.Constraints.Goal),
		MealFrequency: req.Constraints.MealFrequency,
		Budget:        string(req.Constraints.Budget),
		Cuisines:      req.Constraints.Cuisines,
		Restrictions:  req.Constraints.Restrictions,
		Avoid:         append(ex.Classes(), ex.Words()...),
		Targets:       req.Targets,
	}
	for i, share := range shares {
		data.Slots = append(data.Slots, promptSlot{Slot: share.Slot, Calories: portions[i].Calories})
	}
	for i, day := range req.PriorDays {
		if i == recentDaysInPrompt {
			break
		}
		data.Recent = append(data.Recent, day.MealNames()...)
	}

	var buf bytes.Buffer
	if err := planTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render plan prompt: %w", err)
	}
	return buf.String(), nil
}
