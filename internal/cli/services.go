package cli

import (
	"database/sql"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"timetrack/backend/internal/clock"
	"timetrack/backend/internal/db"
	"timetrack/backend/internal/repository"
	"timetrack/backend/internal/service"
)

type services struct {
	db      *sql.DB
	timers  *service.TimerService
	rewards *service.RewardService
}

func (s *services) Close() error {
	return s.db.Close()
}

// openServices opens an existing, migrated database. Commands never create
// one: a mistyped --db should fail rather than yield an empty store.
func openServices(opts *RootOptions, cmd *cobra.Command) (*services, error) {
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	database, err := db.OpenSQLite(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	rewards := service.NewRewardService(repository.NewRewardRepository(database), clock.System, logger)
	timers := service.NewTimerService(repository.NewTimerRepository(database), rewards, service.TimerServiceOptions{
		Clock:  clock.System,
		Logger: logger,
	})
	return &services{db: database, timers: timers, rewards: rewards}, nil
}
