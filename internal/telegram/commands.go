package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"diet-agent/internal/app"
	"diet-agent/internal/notify"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/planner"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

const defaultGlassML = 250

const helpText = `🥗 *Diet Agent*

/profile - show your profile and targets
/profile age=30 gender=male height=180 weight=80 activity=moderate goal=weight\_loss
/plan - today's meal plan
/regen - generate a new plan for today
/log <food> [kcal] - log what you ate
/ate <slot> - log a planned meal (breakfast, lunch, dinner, snack)
/water [ml] - log water (default 250 ml)
/weight <kg> - log your weight
/progress - today's progress
/report - last 7 days
/streaks - your streaks
/suggest [slot] - a meal that fits what is left today
/avoid <tags> - add foods or diets to avoid
/settings [key=value] - reminders and timezone`

// handleText runs one chat message and returns the replies to send, in order.
func (b *Bot) handleText(ctx context.Context, telegramID int64, name, text string) []string {
	cmd, args := splitCommand(text)

	switch cmd {
	case "start":
		_, created, err := b.svc.EnsureUser(ctx, telegramID, name)
		if err != nil {
			return []string{b.userMessage(err)}
		}
		if created {
			return []string{fmt.Sprintf("👋 Welcome%s! Set up your profile to get daily plans:\n\n%s", greetingName(name), helpText)}
		}
		return []string{"👋 Welcome back!\n\n" + helpText}
	case "help", "":
		return []string{helpText}
	case "metrics":
		if b.cfg.AdminTelegramID == 0 || telegramID != b.cfg.AdminTelegramID {
			return []string{"⛔ *Access Denied*: Admin only."}
		}
		usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
		if err != nil {
			b.logger.Error("failed to load usage", zap.Error(err))
			return []string{"❌ Error fetching metrics."}
		}
		return []string{formatMetrics(usage, b.health())}
	}

	p, err := b.svc.ProfileByTelegramID(ctx, telegramID)
	if err != nil {
		return []string{b.userMessage(err)}
	}

	replies, err := b.runCommand(ctx, p, cmd, args)
	if err != nil {
		return []string{b.userMessage(err)}
	}
	return replies
}

func (b *Bot) runCommand(ctx context.Context, p *user.Profile, cmd string, args []string) ([]string, error) {
	switch cmd {
	case "profile":
		if len(args) > 0 {
			updated := *p
			if err := applyProfileArgs(&updated, args); err != nil {
				return nil, err
			}
			if err := b.svc.UpdateProfile(ctx, &updated); err != nil {
				return nil, err
			}
			p = &updated
		}
		targets, water, err := b.svc.Targets(ctx, p.ID)
		if err != nil {
			if errors.Is(err, user.ErrInvalidProfile) {
				return []string{formatProfile(p, nil, 0) + "\n_Complete your profile to see targets._"}, nil
			}
			return nil, err
		}
		return []string{formatProfile(p, &targets, water)}, nil

	case "plan", "regen":
		var (
			plan *planner.DayPlan
			err  error
		)
		if cmd == "regen" {
			plan, err = b.svc.RegeneratePlan(ctx, p.ID)
		} else {
			plan, err = b.svc.TodayPlan(ctx, p.ID)
		}
		if err != nil {
			return nil, err
		}
		planText, shoppingText := formatPlanMarkdownParts(plan)
		return []string{planText, shoppingText}, nil

	case "log":
		food, err := parseFoodArgs(args)
		if err != nil {
			return nil, err
		}
		e, err := b.svc.LogFood(ctx, p.ID, food)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("✅ Logged %s as %s: %d kcal (P %dg · C %dg · F %dg)",
			esc(e.Description), esc(e.MealType), e.Calories, e.Protein, e.Carbs, e.Fat)}, nil

	case "ate":
		if len(args) == 0 {
			return []string{"Which meal? e.g. /ate lunch"}, nil
		}
		slot := strings.ToLower(args[0])
		if slot == "snack" {
			slot = nutrition.SlotSnacks
		}
		e, err := b.svc.LogPlannedMeal(ctx, p.ID, slot)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("✅ Logged planned %s: %s (%d kcal)", esc(e.MealType), esc(e.Description), e.Calories)}, nil

	case "water":
		ml := defaultGlassML
		if len(args) > 0 {
			n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(args[0]), "ml"))
			if err != nil {
				return []string{"Usage: /water 250"}, nil
			}
			ml = n
		}
		if _, err := b.svc.LogWater(ctx, p.ID, ml, b.now()); err != nil {
			return nil, err
		}
		progress, err := b.svc.Progress(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("💧 Logged %d ml. Today: %d / %d ml", ml, progress.WaterML, progress.WaterTargetML)}, nil

	case "weight":
		if len(args) == 0 {
			return []string{"Usage: /weight 78.5"}, nil
		}
		kg, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(args[0]), "kg"), 64)
		if err != nil {
			return []string{"Usage: /weight 78.5"}, nil
		}
		if _, err := b.svc.LogWeight(ctx, p.ID, kg, b.now()); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("⚖️ Logged %.1f kg. Your targets now use this weight.", kg)}, nil

	case "progress":
		progress, err := b.svc.Progress(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return []string{formatProgress("📊 *Today's Progress*", progress)}, nil

	case "report":
		r, err := b.svc.WeeklyReport(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return []string{formatWeeklyReport(r)}, nil

	case "streaks":
		states, err := b.svc.Streaks(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return []string{formatStreaks(states)}, nil

	case "suggest":
		slot := ""
		if len(args) > 0 {
			slot = strings.ToLower(args[0])
		}
		item, err := b.svc.Suggest(ctx, p.ID, slot)
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		sb.WriteString("💡 *Suggestion*\n\n")
		writeMeal(&sb, slotTitle(valueOr(slot)), item)
		if len(item.Ingredients) > 0 {
			fmt.Fprintf(&sb, "Ingredients: %s", esc(strings.Join(item.Ingredients, ", ")))
		}
		return []string{sb.String()}, nil

	case "avoid":
		if len(args) == 0 {
			if len(p.Restrictions) == 0 {
				return []string{"You are not avoiding anything. e.g. /avoid vegetarian, mushroom"}, nil
			}
			return []string{"Avoiding: " + esc(strings.Join(p.Restrictions, ", "))}, nil
		}
		added, err := b.svc.Avoid(ctx, p.ID, splitTags(strings.Join(args, " ")))
		if err != nil {
			return nil, err
		}
		if len(added) == 0 {
			return []string{"Nothing new to avoid."}, nil
		}
		return []string{"🚫 Now avoiding: " + esc(strings.Join(added, ", ")) + "\nUse /regen to update today's plan."}, nil

	case "settings":
		settings, err := b.svc.Settings(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			if err := applySettingsArgs(&settings, args); err != nil {
				return nil, err
			}
			if err := b.svc.UpdateSettings(ctx, settings); err != nil {
				return nil, err
			}
		}
		return []string{formatSettings(settings)}, nil
	}

	return []string{"🤔 Unknown command. Try /help"}, nil
}

// splitCommand returns the command name without slash or bot suffix, and its arguments.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", fields
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func greetingName(name string) string {
	if name == "" {
		return ""
	}
	return ", " + esc(name)
}

func splitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFoodArgs reads "<description> [calories]"; a trailing number, optionally suffixed with
// kcal, is the calorie count.
func parseFoodArgs(args []string) (app.FoodLog, error) {
	if len(args) == 0 {
		return app.FoodLog{}, fmt.Errorf("%w: tell me what you ate, e.g. /log oatmeal with banana 350", tracker.ErrInvalidEntry)
	}
	last := strings.TrimSuffix(strings.ToLower(args[len(args)-1]), "kcal")
	if n, err := strconv.Atoi(last); err == nil && len(args) > 1 {
		return app.FoodLog{Description: strings.Join(args[:len(args)-1], " "), Calories: n}, nil
	}
	return app.FoodLog{Description: strings.Join(args, " ")}, nil
}

func parseKV(args []string) (map[string]string, error) {
	kv := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errBadArgs, a)
		}
		kv[strings.ToLower(k)] = v
	}
	return kv, nil
}

var errBadArgs = errors.New("bad arguments")

func applyProfileArgs(p *user.Profile, args []string) error {
	kv, err := parseKV(args)
	if err != nil {
		return err
	}
	for k, v := range kv {
		switch k {
		case "name":
			p.Name = v
		case "age":
			p.Age, err = strconv.Atoi(v)
		case "gender":
			p.Gender = user.Gender(strings.ToLower(v))
		case "height":
			p.HeightCM, err = strconv.ParseFloat(v, 64)
		case "weight":
			p.WeightKG, err = strconv.ParseFloat(v, 64)
		case "activity":
			p.ActivityLevel = user.ActivityLevel(strings.ToLower(v))
		case "goal":
			p.GoalType = user.GoalType(strings.ToLower(v))
		case "meals":
			p.MealFrequency, err = strconv.Atoi(v)
		case "budget":
			p.Budget = user.Budget(strings.ToLower(v))
		case "calories":
			p.CustomCalories, err = strconv.Atoi(v)
		case "cuisines":
			p.CuisinePreferences = nil
			for _, c := range splitTags(v) {
				p.CuisinePreferences = append(p.CuisinePreferences, user.NormalizeTag(c))
			}
		default:
			return fmt.Errorf("%w: unknown profile field %q", errBadArgs, k)
		}
		if err != nil {
			return fmt.Errorf("%w: %s=%s is not a number", errBadArgs, k, v)
		}
	}
	return nil
}

func parseOnOff(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", errBadArgs, v)
}

func applySettingsArgs(s *user.Settings, args []string) error {
	kv, err := parseKV(args)
	if err != nil {
		return err
	}
	for k, v := range kv {
		switch k {
		case "morning":
			s.MorningPlanTime = v
		case "evening":
			s.EveningSummaryTime = v
		case nutrition.SlotBreakfast, nutrition.SlotLunch, nutrition.SlotDinner:
			if s.MealReminders == nil {
				s.MealReminders = map[string]string{}
			}
			s.MealReminders[k] = v
		case "water":
			s.WaterReminders, err = parseOnOff(v)
		case "interval":
			s.WaterIntervalHours, err = strconv.Atoi(v)
		case "timezone", "tz":
			s.Timezone = v
		case "notifications":
			s.NotificationsEnabled, err = parseOnOff(v)
		case "provider":
			s.AIProvider = strings.ToLower(v)
			if s.AIProvider == "default" {
				s.AIProvider = ""
			}
		default:
			if !isTriggerKind(k) {
				return fmt.Errorf("%w: unknown setting %q", errBadArgs, k)
			}
			var on bool
			if on, err = parseOnOff(v); err == nil {
				s.SetTriggerEnabled(k, on)
			}
		}
		if err != nil {
			return fmt.Errorf("%w: %s=%s: %v", errBadArgs, k, v, err)
		}
	}
	return nil
}

func isTriggerKind(k string) bool {
	for _, kind := range notify.TriggerKinds {
		if string(kind) == k {
			return true
		}
	}
	return false
}

// userMessage turns an error into chat text. Unexpected errors are logged and hidden.
func (b *Bot) userMessage(err error) string {
	var invalid *user.InvalidProfileError
	switch {
	case errors.Is(err, app.ErrUnknownUser):
		return "👋 I don't know you yet. Send /start first."
	case errors.As(err, &invalid):
		return "📝 Your profile is incomplete:\n• " + esc(strings.Join(invalid.Fields, "\n• ")) + "\n\nUpdate it with /profile key=value"
	case errors.Is(err, planner.ErrProfileNotFound):
		return "👋 Set up your profile with /profile first."
	case errors.Is(err, app.ErrNoPlannedMeal):
		return "🤷 Nothing planned for that meal today. See /plan."
	case errors.Is(err, planner.ErrNoTemplate):
		return "😕 No meal fits your restrictions. Try relaxing /avoid."
	case errors.Is(err, tracker.ErrInvalidEntry), errors.Is(err, errBadArgs), errors.Is(err, user.ErrInvalidSettings):
		return "⚠️ " + esc(err.Error())
	}
	b.logger.Error("command failed", zap.Error(err))
	return "❌ Something went wrong. Please try again later."
}
