package main

import (
	"context"
	"log/slog"
	"os"

	"timetrack/backend/internal/clock"
	"timetrack/backend/internal/config"
	"timetrack/backend/internal/db"
	"timetrack/backend/internal/handler"
	"timetrack/backend/internal/repository"
	"timetrack/backend/internal/router"
	"timetrack/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	applied, err := db.RunMigrations(context.Background(), database, cfg.MigrationsDir)
	if err != nil {
		logger.Error("run migrations", "dir", cfg.MigrationsDir, "error", err)
		os.Exit(1)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "files", applied)
	}

	userRepo := repository.NewUserRepository(database)
	rewardRepo := repository.NewRewardRepository(database)
	timerRepo := repository.NewTimerRepository(database)

	authService := service.NewAuthService(userRepo, rewardRepo, clock.System, cfg.JWTSecret, cfg.TokenTTL)
	rewardService := service.NewRewardService(rewardRepo, clock.System, logger)
	timerService := service.NewTimerService(timerRepo, rewardService, service.TimerServiceOptions{
		Clock:         clock.System,
		Logger:        logger,
		RewardTimeout: cfg.RewardTimeout,
	})

	engine := router.New(
		authService,
		handler.NewAuthHandler(authService),
		handler.NewTimerHandler(timerService),
		handler.NewProgressHandler(rewardService),
		cfg.CORSOrigins,
	)
	logger.Info("backend listening", "port", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		logger.Error("run server", "error", err)
		os.Exit(1)
	}
}
