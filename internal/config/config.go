package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AI providers accepted by AI_PROVIDER.
const (
	ProviderRuleBased = "rule_based"
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
	ProviderOllama    = "ollama"
)

const (
	defaultDatabasePath     = "data/diet-agent.db"
	defaultAITimeout        = 30 * time.Second
	defaultAIDailyCallLimit = 50
	defaultGeminiModel      = "gemini-1.5-flash"
	defaultGroqModel        = "llama-3.3-70b-versatile"
	defaultOllamaHost       = "http://localhost:11434"
	defaultOllamaModel      = "llama3.1"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultSchedulerWorkers = 4
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string

	// AI plan generation
	AIProvider       string
	AITimeout        time.Duration
	AIDailyCallLimit int
	GeminiAPIKey     string
	GeminiModel      string
	GroqAPIKey       string
	GroqModel        string
	OllamaHost       string
	OllamaModel      string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	Port             string
	RedisURL         string
	JWTSecret        string
	LogLevel         string
	LogFile          string
	SchedulerWorkers int
}

// NewFromEnv creates a new Config object from environment variables. A .env file in the working
// directory is loaded first when present; variables already set win.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		DatabasePath:       envOr("DATABASE_PATH", defaultDatabasePath),
		AIProvider:         strings.ToLower(envOr("AI_PROVIDER", ProviderRuleBased)),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        envOr("GEMINI_MODEL", defaultGeminiModel),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		GroqModel:          envOr("GROQ_MODEL", defaultGroqModel),
		OllamaHost:         strings.TrimRight(envOr("OLLAMA_HOST", defaultOllamaHost), "/"),
		OllamaModel:        envOr("OLLAMA_MODEL", defaultOllamaModel),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		Port:               envOr("PORT", defaultPort),
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		LogLevel:           envOr("LOG_LEVEL", defaultLogLevel),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	switch cfg.AIProvider {
	case ProviderRuleBased, ProviderOllama:
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return nil, fmt.Errorf("AI_PROVIDER %q is invalid, expected one of rule_based, gemini, groq, ollama", cfg.AIProvider)
	}

	var err error
	if cfg.AITimeout, err = durationEnv("AI_TIMEOUT", defaultAITimeout); err != nil {
		return nil, err
	}
	if cfg.AIDailyCallLimit, err = intEnv("AI_DAILY_CALL_LIMIT", defaultAIDailyCallLimit); err != nil {
		return nil, err
	}
	if cfg.SchedulerWorkers, err = intEnv("SCHEDULER_WORKERS", defaultSchedulerWorkers); err != nil {
		return nil, err
	}
	if cfg.TelegramAllowedUserIDs, err = idListEnv("TELEGRAM_ALLOWED_USER_IDS"); err != nil {
		return nil, err
	}
	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v != "" {
		if cfg.AdminTelegramID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID environment variable is invalid: %w", err)
		}
	}

	return cfg, nil
}

// RequireTelegram checks the variables the bot cannot start without.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// RequireJWT checks that tokens can be signed and verified.
func (c *Config) RequireJWT() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}
	return nil
}

// IsAllowed reports whether a Telegram user may talk to the bot. An empty allow list admits
// everyone.
func (c *Config) IsAllowed(telegramID int64) bool {
	if len(c.TelegramAllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.TelegramAllowedUserIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s environment variable is invalid: %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s environment variable is invalid: %q", key, v)
	}
	return d, nil
}

func idListEnv(key string) ([]int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s environment variable is invalid: %q", key, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
