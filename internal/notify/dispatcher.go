package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"diet-agent/internal/metrics"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/shared"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

// TriggerKind names a scheduled notification.
type TriggerKind string

const (
	TriggerMorningPlan    TriggerKind = "morning_plan"
	TriggerMealReminder   TriggerKind = "meal_reminder"
	TriggerWaterReminder  TriggerKind = "water_reminder"
	TriggerEveningSummary TriggerKind = "evening_summary"
	TriggerWeeklyReport   TriggerKind = "weekly_report"
)

// TriggerKinds lists every kind, in the order settings screens show them.
var TriggerKinds = []TriggerKind{
	TriggerMorningPlan,
	TriggerMealReminder,
	TriggerWaterReminder,
	TriggerEveningSummary,
	TriggerWeeklyReport,
}

// Trigger is one firing. Slot is set for meal reminders only.
type Trigger struct {
	Kind TriggerKind
	Slot string
}

func (t Trigger) String() string {
	if t.Slot == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.Slot
}

// ActionKind is what the dispatcher did with a trigger.
type ActionKind string

const (
	ActionSend ActionKind = "send"
	ActionSkip ActionKind = "skip"
)

// Skip reasons.
const (
	ReasonDisabled   = "disabled"
	ReasonDuplicate  = "duplicate"
	ReasonTargetMet  = "target_met"
	ReasonNoMealSlot = "no_meal_slot"
)

// Action is the result of OnTrigger.
type Action struct {
	Kind    ActionKind
	Reason  string
	Key     string
	Content *Content
}

// Content is the structured payload handed to the Sender; rendering is the transport's job.
type Content struct {
	Trigger  Trigger                `json:"trigger"`
	Date     string                 `json:"date"`
	Plan     *planner.DayPlan       `json:"plan,omitempty"`
	Meal     *planner.MealItem      `json:"meal,omitempty"`
	Progress *tracker.DailyProgress `json:"progress,omitempty"`
	Report   *tracker.WeeklyReport  `json:"report,omitempty"`
}

// Sender delivers content to a user.
type Sender interface {
	RenderAndSend(ctx context.Context, userID string, c Content) error
}

// Ledger records which notifications were already sent. Claim returns false when the key was
// taken before.
type Ledger interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// SettingsReader resolves a user's schedule.
type SettingsReader interface {
	SettingsOrDefault(ctx context.Context, userID string) (user.Settings, error)
}

// PlanSource returns the plan of the day, generating it when needed.
type PlanSource interface {
	GetOrCreatePlan(ctx context.Context, userID, date string) (*planner.DayPlan, error)
}

// ProgressSource reads adherence data.
type ProgressSource interface {
	DailyProgress(ctx context.Context, userID, date string) (*tracker.DailyProgress, error)
	WeeklyReport(ctx context.Context, userID, weekEnding string) (*tracker.WeeklyReport, error)
}

// Dispatcher turns triggers into notifications, at most once per ledger key.
type Dispatcher struct {
	settings   SettingsReader
	plans      PlanSource
	progress   ProgressSource
	ledger     Ledger
	sender     Sender
	collectors *metrics.Collectors
	logger     *zap.Logger
	sends      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. collectors may be nil.
func NewDispatcher(settings SettingsReader, plans PlanSource, progress ProgressSource, ledger Ledger, sender Sender, collectors *metrics.Collectors, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		settings:   settings,
		plans:      plans,
		progress:   progress,
		ledger:     ledger,
		sender:     sender,
		collectors: collectors,
		logger:     logger,
	}
}

// OnTrigger decides whether trig fires for the user, builds the content and hands it to the
// Sender. Delivery happens in the background; its errors are only logged.
func (d *Dispatcher) OnTrigger(ctx context.Context, userID string, trig Trigger, firedAt time.Time) (Action, error) {
	action, err := d.dispatch(ctx, userID, trig, firedAt)
	switch {
	case err != nil:
		d.collectors.Dispatch(string(trig.Kind), "error")
	case action.Kind == ActionSkip:
		d.collectors.Dispatch(string(trig.Kind), action.Reason)
	default:
		d.collectors.Dispatch(string(trig.Kind), string(ActionSend))
	}
	return action, err
}

func (d *Dispatcher) dispatch(ctx context.Context, userID string, trig Trigger, firedAt time.Time) (Action, error) {
	settings, err := d.settings.SettingsOrDefault(ctx, userID)
	if err != nil {
		return Action{}, fmt.Errorf("failed to load settings for user %s: %w", userID, err)
	}
	if !settings.TriggerEnabled(string(trig.Kind)) {
		return Action{Kind: ActionSkip, Reason: ReasonDisabled}, nil
	}
	if trig.Kind == TriggerWaterReminder && !settings.WaterReminders {
		return Action{Kind: ActionSkip, Reason: ReasonDisabled}, nil
	}

	loc := settings.Location()
	date := shared.DateOf(firedAt, loc)
	content, reason, err := d.buildContent(ctx, userID, trig, date)
	if err != nil {
		return Action{}, err
	}
	if reason != "" {
		return Action{Kind: ActionSkip, Reason: reason}, nil
	}

	key := LedgerKey(userID, trig, date, firedAt.In(loc).Hour())
	claimed, err := d.ledger.Claim(ctx, key)
	if err != nil {
		return Action{}, fmt.Errorf("failed to claim dispatch %s: %w", key, err)
	}
	if !claimed {
		return Action{Kind: ActionSkip, Reason: ReasonDuplicate, Key: key}, nil
	}

	d.send(ctx, userID, *content)
	return Action{Kind: ActionSend, Key: key, Content: content}, nil
}

func (d *Dispatcher) buildContent(ctx context.Context, userID string, trig Trigger, date string) (*Content, string, error) {
	c := &Content{Trigger: trig, Date: date}
	switch trig.Kind {
	case TriggerMorningPlan:
		plan, err := d.plans.GetOrCreatePlan(ctx, userID, date)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get plan for %s: %w", date, err)
		}
		c.Plan = plan
	case TriggerMealReminder:
		plan, err := d.plans.GetOrCreatePlan(ctx, userID, date)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get plan for %s: %w", date, err)
		}
		meal, ok := mealFor(plan, trig.Slot)
		if !ok {
			return nil, ReasonNoMealSlot, nil
		}
		c.Meal = &meal
	case TriggerWaterReminder:
		p, err := d.progress.DailyProgress(ctx, userID, date)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get progress for %s: %w", date, err)
		}
		if p.WaterTargetML > 0 && p.WaterML >= p.WaterTargetML {
			return nil, ReasonTargetMet, nil
		}
		c.Progress = p
	case TriggerEveningSummary:
		p, err := d.progress.DailyProgress(ctx, userID, date)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get progress for %s: %w", date, err)
		}
		c.Progress = p
	case TriggerWeeklyReport:
		r, err := d.progress.WeeklyReport(ctx, userID, date)
		if err != nil {
			return nil, "", fmt.Errorf("failed to build weekly report for %s: %w", date, err)
		}
		c.Report = r
	default:
		return nil, "", fmt.Errorf("unknown trigger kind %q", trig.Kind)
	}
	return c, "", nil
}

func mealFor(plan *planner.DayPlan, slot string) (planner.MealItem, bool) {
	if m, ok := plan.Meals[slot]; ok {
		return m, true
	}
	if nutrition.IsSnack(slot) && len(plan.Snacks) > 0 {
		return plan.Snacks[0], true
	}
	return planner.MealItem{}, false
}

func (d *Dispatcher) send(ctx context.Context, userID string, c Content) {
	d.sends.Add(1)
	go func() {
		defer d.sends.Done()
		if err := d.sender.RenderAndSend(context.WithoutCancel(ctx), userID, c); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("user_id", userID),
				zap.String("trigger", c.Trigger.String()),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every background delivery has returned.
func (d *Dispatcher) Wait() {
	d.sends.Wait()
}

// LedgerKey is user|trigger[:slot]|date, plus |hour for water reminders, which may fire several
// times a day.
func LedgerKey(userID string, trig Trigger, date string, hour int) string {
	key := userID + "|" + trig.String() + "|" + date
	if trig.Kind == TriggerWaterReminder {
		key += "|" + strconv.Itoa(hour)
	}
	return key
}
