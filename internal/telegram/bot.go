package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"diet-agent/internal/app"
	"diet-agent/internal/config"
	"diet-agent/internal/metrics"
	"diet-agent/internal/notify"
)

const commandTimeout = 2 * time.Minute

// messageSender is the part of the Telegram API the bot uses to talk.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot serves chat commands from the webhook and delivers scheduled notifications.
type Bot struct {
	api          messageSender
	svc          *app.Service
	metricsStore *metrics.Store
	health       func() metrics.SysHealth
	cfg          *config.Config
	logger       *zap.Logger
	now          func() time.Time
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc *app.Service, metricsStore *metrics.Store, health func() metrics.SysHealth, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", zap.String("response", resp.Description))

	return newBot(api, cfg, svc, metricsStore, health, logger), nil
}

func newBot(api messageSender, cfg *config.Config, svc *app.Service, metricsStore *metrics.Store, health func() metrics.SysHealth, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:          api,
		svc:          svc,
		metricsStore: metricsStore,
		health:       health,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterHandlers registers the webhook handler.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", b.handleWebhook)
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsAllowed(msg.From.ID) {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("telegram_id", msg.From.ID),
			zap.String("username", msg.From.UserName),
		)
		return
	}

	go b.processMessage(msg)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	start := time.Now()
	cmd, _ := splitCommand(msg.Text)
	replies := b.handleText(ctx, msg.From.ID, msg.From.FirstName, msg.Text)
	for _, text := range replies {
		if err := b.sendMarkdown(msg.Chat.ID, text); err != nil {
			b.logger.Error("failed to send reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
			return
		}
	}
	b.logger.Info("command handled",
		zap.Int64("telegram_id", msg.From.ID),
		zap.String("command", cmd),
		zap.Duration("latency", time.Since(start)),
	)
}

func (b *Bot) sendMarkdown(chatID int64, text string) error {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	_, err := b.api.Send(m)
	return err
}

// RenderAndSend delivers a scheduled notification to the user's chat.
func (b *Bot) RenderAndSend(ctx context.Context, userID string, c notify.Content) error {
	p, err := b.svc.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if p.TelegramID == 0 {
		return fmt.Errorf("user %s has no chat", userID)
	}
	for _, text := range render(c) {
		if err := b.sendMarkdown(p.TelegramID, text); err != nil {
			return fmt.Errorf("failed to send %s: %w", c.Trigger, err)
		}
	}
	return nil
}

func render(c notify.Content) []string {
	switch c.Trigger.Kind {
	case notify.TriggerMorningPlan:
		if c.Plan == nil {
			return nil
		}
		planText, shoppingText := formatPlanMarkdownParts(c.Plan)
		return []string{"☀️ Good morning! Here is your plan.\n\n" + planText, shoppingText}
	case notify.TriggerMealReminder:
		if c.Meal == nil {
			return nil
		}
		return []string{formatMealReminder(c.Trigger.Slot, *c.Meal)}
	case notify.TriggerWaterReminder:
		if c.Progress == nil {
			return nil
		}
		return []string{formatWaterReminder(c.Progress)}
	case notify.TriggerEveningSummary:
		if c.Progress == nil {
			return nil
		}
		return []string{formatProgress("🌙 *Evening Summary*", c.Progress)}
	case notify.TriggerWeeklyReport:
		if c.Report == nil {
			return nil
		}
		return []string{formatWeeklyReport(c.Report)}
	}
	return []string{strings.TrimSpace(fmt.Sprintf("🔔 %s", c.Trigger))}
}

// SendAdminAlert notifies the admin chat, when one is configured.
func (b *Bot) SendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	if err := b.sendMarkdown(b.cfg.AdminTelegramID, text); err != nil {
		b.logger.Warn("failed to send admin alert", zap.Error(err))
	}
}
