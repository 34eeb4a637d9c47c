package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"diet-agent/internal/metrics"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

var mainSlots = []string{nutrition.SlotBreakfast, nutrition.SlotLunch, nutrition.SlotDinner}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func slotTitle(slot string) string {
	s := strings.ReplaceAll(slot, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func macroLine(m nutrition.MacroTargets) string {
	return fmt.Sprintf("%d kcal · P %dg · C %dg · F %dg", m.Calories, m.Protein, m.Carbs, m.Fat)
}

func writeMeal(b *strings.Builder, title string, m planner.MealItem) {
	fmt.Fprintf(b, "*%s*: %s", title, esc(m.Name))
	if m.PrepMinutes > 0 {
		fmt.Fprintf(b, " (%d mins)", m.PrepMinutes)
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "_%d kcal · P %dg · C %dg · F %dg_\n\n", m.Calories, m.Protein, m.Carbs, m.Fat)
}

// formatPlanMarkdownParts renders a plan as two messages: the meals and the shopping list.
func formatPlanMarkdownParts(plan *planner.DayPlan) (string, string) {
	var pb strings.Builder
	fmt.Fprintf(&pb, "📅 *Meal Plan for %s*\n\n", plan.Date)

	totalPrep := 0
	for _, slot := range mainSlots {
		m, ok := plan.Meals[slot]
		if !ok {
			continue
		}
		writeMeal(&pb, slotTitle(slot), m)
		totalPrep += m.PrepMinutes
	}
	for _, s := range plan.Snacks {
		writeMeal(&pb, "Snack", s)
		totalPrep += s.PrepMinutes
	}

	fmt.Fprintf(&pb, "📊 *Total:* %s\n", macroLine(plan.Totals))
	fmt.Fprintf(&pb, "🎯 *Target:* %s\n", macroLine(plan.Targets))
	if totalPrep > 0 {
		fmt.Fprintf(&pb, "⏱ *Total Prep:* %d mins\n", totalPrep)
	}
	if plan.FellBack {
		pb.WriteString("\n_Generated from the built-in catalog._\n")
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	category := ""
	for _, item := range plan.ShoppingList {
		if item.Category != category {
			category = item.Category
			fmt.Fprintf(&sb, "\n*%s*\n", esc(slotTitle(category)))
		}
		fmt.Fprintf(&sb, "• %s", esc(item.Name))
		if item.Quantity != "" {
			fmt.Fprintf(&sb, " (%s)", esc(item.Quantity))
		}
		sb.WriteString("\n")
	}
	if len(plan.ShoppingList) == 0 {
		sb.WriteString("_Nothing to buy._\n")
	}

	return pb.String(), sb.String()
}

func formatMealReminder(slot string, m planner.MealItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🍽 *Time for %s!*\n\n", strings.ToLower(slotTitle(slot)))
	writeMeal(&b, "Planned", m)
	if len(m.Ingredients) > 0 {
		fmt.Fprintf(&b, "Ingredients: %s\n\n", esc(strings.Join(m.Ingredients, ", ")))
	}
	fmt.Fprintf(&b, "Ate it? Reply /ate %s", esc(slot))
	return b.String()
}

func progressBar(done, target int) string {
	const width = 10
	if target <= 0 {
		return ""
	}
	filled := min(done*width/target, width)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func formatWaterReminder(p *tracker.DailyProgress) string {
	left := max(p.WaterTargetML-p.WaterML, 0)
	return fmt.Sprintf("💧 *Water check*\n\n%s %d / %d ml\n%d ml to go. Log a glass with /water 250",
		progressBar(p.WaterML, p.WaterTargetML), p.WaterML, p.WaterTargetML, left)
}

func formatProgress(title string, p *tracker.DailyProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n", title, p.Date)
	fmt.Fprintf(&b, "🔥 Calories: %d / %d %s\n", p.Consumed.Calories, p.Targets.Calories, progressBar(p.Consumed.Calories, p.Targets.Calories))
	fmt.Fprintf(&b, "🥩 Protein: %d / %dg\n", p.Consumed.Protein, p.Targets.Protein)
	fmt.Fprintf(&b, "🍞 Carbs: %d / %dg\n", p.Consumed.Carbs, p.Targets.Carbs)
	fmt.Fprintf(&b, "🥑 Fat: %d / %dg\n", p.Consumed.Fat, p.Targets.Fat)
	fmt.Fprintf(&b, "💧 Water: %d / %d ml\n", p.WaterML, p.WaterTargetML)
	fmt.Fprintf(&b, "🍽 Meals logged: %d\n\n", p.MealsLogged)
	switch {
	case p.OnTrack:
		b.WriteString("✅ You're on track today!")
	case p.MealsLogged == 0:
		b.WriteString("📝 Nothing logged yet. Use /log or /ate.")
	default:
		fmt.Fprintf(&b, "%d kcal left for today.", p.RemainingCalories())
	}
	return b.String()
}

func formatWeeklyReport(r *tracker.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 *Weekly Report* (%s to %s)\n\n", r.Start, r.End)
	fmt.Fprintf(&b, "Days logged: %d/7 · On track: %d/7\n", r.DaysLogged, r.DaysOnTrack)
	fmt.Fprintf(&b, "Average: %s\n", macroLine(r.Averages))
	fmt.Fprintf(&b, "Target: %s\n", macroLine(r.Targets))
	fmt.Fprintf(&b, "Average water: %d ml\n", r.AvgWaterML)
	if r.WeightChange != nil {
		fmt.Fprintf(&b, "Weight change: %+.1f kg\n", *r.WeightChange)
	}
	fmt.Fprintf(&b, "Logging streak: %d days\n", r.LoggingStreak)
	if gaps := r.Gaps(); len(gaps) > 0 {
		fmt.Fprintf(&b, "Gaps: %s\n", strings.Join(gaps, ", "))
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\n💡 *Recommendations*\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "• %s\n", esc(rec))
		}
	}
	return b.String()
}

var streakNames = map[tracker.StreakType]string{
	tracker.StreakLogging:       "📝 Logging",
	tracker.StreakPlanFollowing: "🍽 Plan following",
	tracker.StreakWater:         "💧 Water",
}

func formatStreaks(states []tracker.StreakState) string {
	if len(states) == 0 {
		return "🔥 No streaks yet. Log a meal or a glass of water to start one!"
	}
	var b strings.Builder
	b.WriteString("🔥 *Streaks*\n\n")
	for _, s := range states {
		name := streakNames[s.Type]
		if name == "" {
			name = string(s.Type)
		}
		fmt.Fprintf(&b, "%s: %d days (best %d)\n", name, s.Current, s.Longest)
	}
	return b.String()
}

func formatProfile(p *user.Profile, targets *nutrition.MacroTargets, waterML int) string {
	var b strings.Builder
	b.WriteString("👤 *Profile*\n\n")
	if p.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", esc(p.Name))
	}
	fmt.Fprintf(&b, "Age: %d · Gender: %s\n", p.Age, valueOr(string(p.Gender)))
	fmt.Fprintf(&b, "Height: %g cm · Weight: %g kg\n", p.HeightCM, p.WeightKG)
	fmt.Fprintf(&b, "Activity: %s\n", esc(valueOr(string(p.ActivityLevel))))
	fmt.Fprintf(&b, "Goal: %s\n", esc(valueOr(string(p.GoalType))))
	fmt.Fprintf(&b, "Meals per day: %d · Budget: %s\n", p.Meals(), p.BudgetTier())
	if len(p.Restrictions) > 0 {
		fmt.Fprintf(&b, "Avoiding: %s\n", esc(strings.Join(p.Restrictions, ", ")))
	}
	if len(p.CuisinePreferences) > 0 {
		fmt.Fprintf(&b, "Cuisines: %s\n", esc(strings.Join(p.CuisinePreferences, ", ")))
	}
	if targets != nil {
		fmt.Fprintf(&b, "\n🎯 *Daily targets*\n%s\n💧 %d ml water\n", macroLine(*targets), waterML)
	}
	return b.String()
}

func formatSettings(s user.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ *Settings*\n\n")
	fmt.Fprintf(&b, "Notifications: %s\n", onOff(s.NotificationsEnabled))
	fmt.Fprintf(&b, "Timezone: %s\n", esc(s.Timezone))
	fmt.Fprintf(&b, "Morning plan: %s · Evening summary: %s\n", s.MorningPlanTime, s.EveningSummaryTime)
	for _, slot := range mainSlots {
		if at, ok := s.MealReminders[slot]; ok {
			fmt.Fprintf(&b, "%s reminder: %s\n", slotTitle(slot), at)
		}
	}
	fmt.Fprintf(&b, "Water reminders: %s (every %dh)\n", onOff(s.WaterReminders), s.WaterIntervalHours)
	if len(s.DisabledTriggers) > 0 {
		fmt.Fprintf(&b, "Disabled: %s\n", esc(strings.Join(s.DisabledTriggers, ", ")))
	}
	if s.AIProvider != "" {
		fmt.Fprintf(&b, "Plan generator: %s\n", esc(s.AIProvider))
	}
	return b.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs, %d failed)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Fallbacks)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	fmt.Fprintf(&sb, "• Uptime: %s\n", health.Uptime.Round(time.Second))
	return sb.String()
}

func valueOr(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
