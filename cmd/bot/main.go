// Package main contains the entrypoint for the brainbot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/edgard/brainbot/internal/ai"
	"github.com/edgard/brainbot/internal/bot"
	"github.com/edgard/brainbot/internal/config"
	"github.com/edgard/brainbot/internal/database"
	"github.com/edgard/brainbot/internal/httpapi"
	"github.com/edgard/brainbot/internal/logger"
	"github.com/edgard/brainbot/internal/resolver"
	"github.com/edgard/brainbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger,
// db, ai client, telegram adapter, http server, scheduler), handles
// graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	// Optional .env file for local development and PaaS-style deployments.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.LogLevel, "json", cfg.LogJSON)

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	aiClient, err := ai.NewClient(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "error", err)
		return 1
	}

	replyResolver := resolver.New(store, aiClient, log,
		cfg.AIInstruction, cfg.AIContextEntries, cfg.FallbackReply)

	tg, err := telegram.NewBot(cfg.TelegramToken, log,
		tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	policy := telegram.Policy{
		ProcessCommands: cfg.TelegramProcessCommands,
		GroupLearning:   cfg.TelegramGroupLearning,
	}
	processor := telegram.NewProcessor(store, replyResolver, telegram.NewNotifier(tg, log), log, policy)

	webhookMode := cfg.TelegramPublicURL != ""
	if webhookMode {
		if err := telegram.SetupWebhook(ctx, tg, cfg.TelegramPublicURL, log); err != nil {
			log.Error("Failed to register Telegram webhook", "error", err)
			return 1
		}
	} else {
		// Polling mode routes every text message through the shared pipeline.
		tg.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, processor.Handler())
	}

	server := httpapi.NewServer(cfg.HTTPAddr, store, replyResolver, processor, log)

	tasks := map[string]bot.TaskSpec{
		"db_maintenance": {
			Schedule: cfg.MaintenanceSchedule,
			Run:      bot.NewMaintenanceTask(store, log),
		},
	}
	sched, err := bot.NewScheduler(log, tasks)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, !webhookMode, server, sched)

	log.Info("Starting brainbot...")
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
