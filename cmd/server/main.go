// Package main contains the entrypoint for the ReplyCoach service.
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

	"github.com/replycoach/service/internal/app"
	"github.com/replycoach/service/internal/config"
	"github.com/replycoach/service/internal/database"
	"github.com/replycoach/service/internal/engine"
	"github.com/replycoach/service/internal/llm"
	"github.com/replycoach/service/internal/logger"
	"github.com/replycoach/service/internal/server"
	"github.com/replycoach/service/internal/tasks"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, database, AI client,
// engine, HTTP server, scheduler), runs them until shutdown, and returns
// the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	client, err := llm.NewClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	eng := engine.New(client, store, cfg.Engine, log)
	srv := server.New(cfg.Server, eng, store, log)

	taskRegistry := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Store: store})
	sched, err := app.NewScheduler(log, &cfg.Scheduler, taskRegistry)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	orchestrator := app.NewApp(log, srv, sched)

	log.Info("Starting service...")
	runErr := orchestrator.Run(ctx)
	log.Info("Service run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Service stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
