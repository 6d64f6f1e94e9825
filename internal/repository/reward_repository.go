package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"timetrack/backend/internal/model"
)

type RewardRepository struct {
	db *sql.DB
}

func NewRewardRepository(db *sql.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// CreateInitialProgress gives a new user a level 1, zero XP record.
func (r *RewardRepository) CreateInitialProgress(ctx context.Context, userID string, now time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO user_progress (user_id, xp, level, completed_timers, total_tracked_ms, updated_at)
		 VALUES (?, 0, 1, 0, 0, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID,
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("create initial progress: %w", err)
	}
	return nil
}

// RecordEvent stores event and, if it is new, lets apply update the user's
// progress in the same transaction. apply returns achievement codes to
// unlock. A (timer, kind) pair seen before is a no-op and returns false.
func (r *RewardRepository) RecordEvent(
	ctx context.Context,
	event model.XPEvent,
	apply func(*model.UserProgress) []string,
) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO xp_events (id, user_id, timer_id, kind, xp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(timer_id, kind) DO NOTHING`,
		event.ID,
		event.UserID,
		event.TimerID,
		event.Kind,
		event.XP,
		formatTime(event.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert xp event: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert xp event rows: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	progress, err := getProgressTx(ctx, tx, event.UserID)
	if errors.Is(err, ErrNotFound) {
		progress = &model.UserProgress{UserID: event.UserID, Level: 1}
	} else if err != nil {
		return false, err
	}

	unlocked := apply(progress)
	progress.UpdatedAt = event.CreatedAt

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO user_progress (user_id, xp, level, completed_timers, total_tracked_ms, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     xp = excluded.xp,
		     level = excluded.level,
		     completed_timers = excluded.completed_timers,
		     total_tracked_ms = excluded.total_tracked_ms,
		     updated_at = excluded.updated_at`,
		progress.UserID,
		progress.XP,
		progress.Level,
		progress.CompletedTimers,
		progress.TotalTrackedMs,
		formatTime(progress.UpdatedAt),
	); err != nil {
		return false, fmt.Errorf("save progress: %w", err)
	}

	for _, code := range unlocked {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO achievements (user_id, code, unlocked_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT(user_id, code) DO NOTHING`,
			event.UserID,
			code,
			formatTime(event.CreatedAt),
		); err != nil {
			return false, fmt.Errorf("unlock achievement %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit xp event: %w", err)
	}
	return true, nil
}

// GetProgress returns the user's XP totals and unlocked achievements.
func (r *RewardRepository) GetProgress(ctx context.Context, userID string) (*model.UserProgress, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	progress, err := getProgressTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(
		ctx,
		`SELECT code, unlocked_at FROM achievements WHERE user_id = ? ORDER BY unlocked_at, code`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	progress.Achievements = make([]model.Achievement, 0)
	for rows.Next() {
		var achievement model.Achievement
		var unlockedAt string
		if err := rows.Scan(&achievement.Code, &unlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		if achievement.UnlockedAt, err = parseTime(unlockedAt); err != nil {
			return nil, fmt.Errorf("parse achievement unlocked_at: %w", err)
		}
		progress.Achievements = append(progress.Achievements, achievement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return progress, nil
}

func getProgressTx(ctx context.Context, tx *sql.Tx, userID string) (*model.UserProgress, error) {
	var progress model.UserProgress
	var updatedAt string
	err := tx.QueryRowContext(
		ctx,
		`SELECT user_id, xp, level, completed_timers, total_tracked_ms, updated_at
		 FROM user_progress WHERE user_id = ?`,
		userID,
	).Scan(
		&progress.UserID,
		&progress.XP,
		&progress.Level,
		&progress.CompletedTimers,
		&progress.TotalTrackedMs,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	if progress.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse progress updated_at: %w", err)
	}
	return &progress, nil
}
