package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"diet-agent/internal/api"
	"diet-agent/internal/app"
	"diet-agent/internal/config"
	"diet-agent/internal/logging"
	"diet-agent/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Database, repositories, strategies and engine
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	// 3. Telegram Bot and notifications
	bot, err := telegram.NewBot(cfg, application.Service, application.MetricsStore, application.SysHealth, logger.Named("telegram"))
	if err != nil {
		logger.Fatal("failed to initialize telegram bot", zap.Error(err))
	}
	dispatcher := application.NewDispatcher(bot)
	runner := application.NewScheduler(dispatcher)

	// 4. HTTP surface
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	if err := cfg.RequireJWT(); err == nil {
		api.NewServer(application.Service, []byte(cfg.JWTSecret), cfg.AdminTelegramID, logger.Named("api")).RegisterHandlers(mux)
	} else {
		logger.Warn("health-sync api disabled", zap.Error(err))
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(application.SysHealth())
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler exited", zap.Error(err))
		}
	}()

	bot.SendAdminAlert("🟢 Diet agent started")

	<-ctx.Done()
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	<-schedulerDone
	dispatcher.Wait()

	logger.Info("server exiting")
}
