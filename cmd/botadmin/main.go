// Package main contains the entrypoint for the bot profile manager.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"botadmin/internal/app"
	"botadmin/internal/app/tasks"
	"botadmin/internal/config"
	"botadmin/internal/database"
	"botadmin/internal/logger"
	"botadmin/internal/server"
	"botadmin/internal/syncer"
	"botadmin/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// telegram client factory, sync engine, http server, scheduler), handles
// graceful shutdown, and returns an exit code (0 for success, 1 for failure).
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

	newClient := telegram.NewClientFactory(cfg.Telegram, log)
	engine := syncer.New(store, newClient, cfg.Languages, cfg.Sync.Concurrency, log)

	handlers := server.NewHandlers(engine, store, cfg.Languages, cfg.Server.StaticDir, log)
	srv := server.NewServer(cfg.Server.Addr, handlers, log)

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Syncer: engine,
	}
	sched, err := app.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	application := app.NewApp(log, cfg, srv, sched)

	log.Info("Starting bot profile manager...",
		"addr", cfg.Server.Addr, "languages", len(cfg.Languages))
	runErr := application.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Application stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Application stopped gracefully.")
	return 0
}
