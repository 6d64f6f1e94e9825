package main

import (
	"context"
	"log/slog"
	"os"

	"timetrack/backend/internal/config"
	"timetrack/backend/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	applied, err := db.RunMigrations(context.Background(), database, cfg.MigrationsDir)
	if err != nil {
		slog.Error("run migrations", "dir", cfg.MigrationsDir, "error", err)
		os.Exit(1)
	}

	if len(applied) == 0 {
		slog.Info("database is up to date", "path", cfg.DBPath)
		return
	}
	for _, name := range applied {
		slog.Info("applied migration", "file", name)
	}
}
