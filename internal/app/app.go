package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"diet-agent/internal/config"
	"diet-agent/internal/database"
	"diet-agent/internal/llm"
	"diet-agent/internal/metrics"
	"diet-agent/internal/notify"
	"diet-agent/internal/planner"
	"diet-agent/internal/scheduler"
	"diet-agent/internal/tracker"
	"diet-agent/internal/user"
)

// App holds the application's dependencies.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *database.DB
	Registry   *prometheus.Registry
	Collectors *metrics.Collectors
	StartedAt  time.Time

	Users        *user.Repository
	Plans        *planner.PlanRepository
	Logs         *tracker.LogRepository
	Streaks      *tracker.StreakRepository
	MetricsStore *metrics.Store
	SQLLedger    *notify.SQLLedger
	Ledger       notify.Ledger

	Orchestrator *planner.Orchestrator
	Tracker      *tracker.Tracker
	Service      *Service

	closers []io.Closer
}

// New opens the database, builds the LLM clients the configuration enables and wires the engine.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Registry:     registry,
		Collectors:   metrics.NewCollectors(registry),
		StartedAt:    time.Now(),
		Users:        user.NewRepository(db.SQL),
		Plans:        planner.NewPlanRepository(db.SQL),
		Logs:         tracker.NewLogRepository(db.SQL),
		Streaks:      tracker.NewStreakRepository(db.SQL),
		MetricsStore: metrics.NewStore(db.SQL),
		SQLLedger:    notify.NewSQLLedger(db.SQL),
	}
	a.closers = append(a.closers, db)
	a.Ledger = a.SQLLedger

	if cfg.RedisURL != "" {
		client, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client)
		a.Ledger = notify.NewRedisLedger(client, 0)
		logger.Info("using redis dispatch ledger")
	}

	strategies, err := a.buildStrategies(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []planner.Option{
		planner.WithRecorder(a.MetricsStore),
		planner.WithCollectors(a.Collectors),
	}
	for _, s := range strategies {
		opts = append(opts, planner.WithStrategy(s))
	}
	a.Orchestrator = planner.NewOrchestrator(a.Users, a.Plans, logger.Named("orchestrator"), planner.OrchestratorConfig{
		DefaultStrategy: cfg.AIProvider,
		Timeout:         cfg.AITimeout,
	}, opts...)
	a.Tracker = tracker.New(a.Users, a.Plans, a.Logs, a.Streaks, a.Collectors, logger.Named("tracker"))
	a.Service = NewService(a.Users, a.Plans, a.Orchestrator, a.Tracker)

	logger.Info("application initialized",
		zap.String("database", cfg.DatabasePath),
		zap.String("ai_provider", cfg.AIProvider),
		zap.Int("strategies", len(strategies)+1),
	)
	return a, nil
}

// buildStrategies registers an AI strategy for every provider with usable configuration. The
// configured provider is the default; the others remain selectable per user.
func (a *App) buildStrategies(ctx context.Context) ([]planner.Strategy, error) {
	cfg := a.Config
	limit := planner.WithDailyLimit(a.MetricsStore, cfg.AIDailyCallLimit)

	var out []planner.Strategy
	if cfg.GroqAPIKey != "" {
		out = append(out, planner.NewAIStrategy(config.ProviderGroq, cfg.GroqModel, llm.NewGroqClient(cfg), limit))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gemini)
		out = append(out, planner.NewAIStrategy(config.ProviderGemini, cfg.GeminiModel, gemini, limit))
	}
	if cfg.AIProvider == config.ProviderOllama {
		out = append(out, planner.NewAIStrategy(config.ProviderOllama, cfg.OllamaModel, llm.NewOllamaClient(cfg), limit))
	}
	return out, nil
}

// NewDispatcher builds the notification dispatcher around a transport.
func (a *App) NewDispatcher(sender notify.Sender) *notify.Dispatcher {
	return notify.NewDispatcher(a.Users, a.Orchestrator, a.Tracker, a.Ledger, sender, a.Collectors, a.Logger.Named("notify"))
}

// NewScheduler builds the trigger runner for d.
func (a *App) NewScheduler(d *notify.Dispatcher) *scheduler.Runner {
	return scheduler.NewRunner(a.Users, a.Users, d, a.Config.SchedulerWorkers, a.Logger.Named("scheduler"))
}

// SysHealth reports process and data directory health.
func (a *App) SysHealth() metrics.SysHealth {
	return metrics.GetSysHealth(filepath.Dir(a.DB.Path), a.StartedAt)
}

// Close releases every resource New opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
