package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timetrack/backend/internal/clock"
	"timetrack/backend/internal/db"
	"timetrack/backend/internal/model"
	"timetrack/backend/internal/repository"
)

var epoch = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.RewardEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.RewardEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []model.RewardEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.RewardEvent(nil), p.events...)
}

type testEnv struct {
	db        *sql.DB
	clock     *clock.Manual
	publisher *recordingPublisher
	timers    *repository.TimerRepository
	service   *TimerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	_, err = db.RunMigrations(context.Background(), database, migrationsDir)
	require.NoError(t, err)

	env := &testEnv{
		db:        database,
		clock:     clock.NewManual(epoch),
		publisher: &recordingPublisher{},
		timers:    repository.NewTimerRepository(database),
	}
	env.service = NewTimerService(env.timers, env.publisher, TimerServiceOptions{
		Clock:  env.clock,
		Logger: discardLogger(),
	})
	return env
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubStore wraps a real store and lets a test force errors.
type stubStore struct {
	TimerStore
	createErr     error
	transitionErr error
	findErr       error

	// beforeTransition runs once, after the service has loaded the timer
	// and before the store transaction opens.
	beforeTransition func()
}

func (s *stubStore) CreateIfNoneActive(ctx context.Context, timer *model.Timer) (*model.Timer, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.TimerStore.CreateIfNoneActive(ctx, timer)
}

func (s *stubStore) Transition(ctx context.Context, id string, mutate func(*model.Timer) error) (*model.Timer, error) {
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	if hook := s.beforeTransition; hook != nil {
		s.beforeTransition = nil
		hook()
	}
	return s.TimerStore.Transition(ctx, id, mutate)
}

func (s *stubStore) FindByID(ctx context.Context, id string) (*model.Timer, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.TimerStore.FindByID(ctx, id)
}

var errDiskGone = errors.New("disk I/O error")
