package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"diet-agent/internal/api"
	"diet-agent/internal/app"
	"diet-agent/internal/config"
	"diet-agent/internal/database"
	"diet-agent/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate":
		if err := database.RunMigrations(cfg.DatabasePath); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Printf("Database %s is up to date.\n", cfg.DatabasePath)
		return
	case "token":
		tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
		telegramID := tokenCmd.Int64("telegram-id", 0, "Telegram user id the token acts for")
		ttl := tokenCmd.Duration("ttl", 0, "Token lifetime, 0 for no expiry")
		tokenCmd.Parse(args)
		if err := cfg.RequireJWT(); err != nil {
			log.Fatalf("Cannot sign tokens: %v", err)
		}
		if *telegramID == 0 {
			log.Fatal("-telegram-id is required")
		}
		token, err := api.IssueToken([]byte(cfg.JWTSecret), *telegramID, *ttl, time.Now())
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	case "targets", "plan", "report", "metrics-cleanup", "ledger-cleanup":
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	if err := run(ctx, application, cmd, args); err != nil {
		application.Close()
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	telegramID := fs.Int64("telegram-id", 0, "Telegram user id")
	days := fs.Int("days", 30, "Keep records for the last N days")
	date := fs.String("date", "", "Plan date (YYYY-MM-DD), defaults to the user's today")
	regen := fs.Bool("regen", false, "Replace the stored plan")
	fs.Parse(args)

	switch cmd {
	case "metrics-cleanup":
		affected, err := a.MetricsStore.Cleanup(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
		return nil
	case "ledger-cleanup":
		affected, err := a.SQLLedger.Cleanup(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old dispatch records.\n", affected)
		return nil
	}

	p, err := a.Service.ProfileByTelegramID(ctx, *telegramID)
	if err != nil {
		return err
	}

	switch cmd {
	case "targets":
		targets, water, err := a.Service.Targets(ctx, p.ID)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"targets": targets, "water_ml": water})
	case "plan":
		day := *date
		if day == "" {
			if day, err = a.Service.Today(ctx, p.ID); err != nil {
				return err
			}
		}
		getPlan := a.Orchestrator.GetOrCreatePlan
		if *regen {
			getPlan = a.Orchestrator.Regenerate
		}
		plan, err := getPlan(ctx, p.ID, day)
		if err != nil {
			return err
		}
		return printJSON(plan)
	case "report":
		r, err := a.Service.WeeklyReport(ctx, p.ID)
		if err != nil {
			return err
		}
		return printJSON(r)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println("Usage: diet-agent <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  migrate            Apply database migrations")
	fmt.Println("  targets            Print a user's daily targets (-telegram-id)")
	fmt.Println("  plan               Print or generate a day plan (-telegram-id, -date, -regen)")
	fmt.Println("  report             Print the weekly report (-telegram-id)")
	fmt.Println("  token              Issue an API token (-telegram-id, -ttl)")
	fmt.Println("  metrics-cleanup    Remove old metric records (-days)")
	fmt.Println("  ledger-cleanup     Remove old notification dispatch records (-days)")
}
