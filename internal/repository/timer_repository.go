package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack/backend/internal/model"
)

const timerColumns = `id, user_id, status, started_at, paused_at, segment_started_at,
	total_paused_ns, recorded_elapsed_ns, ended_at, project_id, task_id,
	note, billable, version, created_at, updated_at`

type TimerFilter struct {
	Status    model.TimerStatus
	ProjectID string
	From      *time.Time
	To        *time.Time
	Limit     int
}

type TimerRepository struct {
	db *sql.DB
}

func NewTimerRepository(db *sql.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

// CreateIfNoneActive relies on the partial unique index on timers(user_id).
func (r *TimerRepository) CreateIfNoneActive(ctx context.Context, timer *model.Timer) (*model.Timer, error) {
	if err := timer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimer, err)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO timers (`+timerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		timerArgs(timer)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			conflict := &ActiveTimerConflictError{UserID: timer.UserID}
			existing, findErr := r.FindActiveForUser(ctx, timer.UserID)
			if findErr == nil {
				conflict.Existing = existing
			} else if !errors.Is(findErr, ErrNotFound) {
				return nil, findErr
			}
			return nil, conflict
		}
		return nil, fmt.Errorf("create timer: %w", err)
	}

	created := *timer
	return &created, nil
}

func (r *TimerRepository) FindByID(ctx context.Context, id string) (*model.Timer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+timerColumns+` FROM timers WHERE id = ?`, id)
	return scanTimer(row)
}

func (r *TimerRepository) FindActiveForUser(ctx context.Context, userID string) (*model.Timer, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+timerColumns+`
		 FROM timers
		 WHERE user_id = ? AND status IN (?, ?)`,
		userID,
		model.TimerRunning,
		model.TimerPaused,
	)
	return scanTimer(row)
}

// Transition judges legality on the row read inside the transaction; the
// UPDATE is guarded by that row's version.
func (r *TimerRepository) Transition(ctx context.Context, id string, mutate func(*model.Timer) error) (*model.Timer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanTimer(tx.QueryRowContext(ctx, `SELECT `+timerColumns+` FROM timers WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	next := *current
	if err := mutate(&next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: timer %s: %v", ErrInvalidTimer, id, err)
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE timers
		 SET status = ?,
		     paused_at = ?,
		     segment_started_at = ?,
		     total_paused_ns = ?,
		     recorded_elapsed_ns = ?,
		     ended_at = ?,
		     note = ?,
		     version = ?,
		     updated_at = ?
		 WHERE id = ? AND version = ?`,
		next.Status,
		formatNullableTime(next.PausedAt),
		formatNullableTime(next.SegmentStartedAt),
		int64(next.TotalPaused),
		int64(next.RecordedElapsed),
		formatNullableTime(next.EndedAt),
		next.Note,
		next.Version,
		formatTime(next.UpdatedAt),
		id,
		current.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ActiveTimerConflictError{UserID: next.UserID}
		}
		return nil, fmt.Errorf("update timer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update timer rows: %w", err)
	}
	if affected == 0 {
		latest, err := scanTimer(tx.QueryRowContext(ctx, `SELECT `+timerColumns+` FROM timers WHERE id = ?`, id))
		if err != nil {
			return nil, err
		}
		return nil, &VersionConflictError{Expected: current.Version, Current: latest}
	}

	if next.Status == model.TimerCompleted {
		if err := insertTimesheetEntryTx(ctx, tx, &next); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return &next, nil
}

func (r *TimerRepository) List(ctx context.Context, userID string, filter TimerFilter) ([]model.Timer, error) {
	clauses := []string{"user_id = ?"}
	args := []interface{}{userID}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.From != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "started_at < ?")
		args = append(args, formatTime(*filter.To))
	}
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+timerColumns+`
		 FROM timers
		 WHERE `+strings.Join(clauses, " AND ")+`
		 ORDER BY started_at DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	timers := make([]model.Timer, 0, filter.Limit)
	for rows.Next() {
		timer, scanErr := scanTimer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		timers = append(timers, *timer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timers: %w", err)
	}
	return timers, nil
}

func (r *TimerRepository) ListTimesheet(ctx context.Context, userID string, from, to time.Time) ([]model.TimesheetEntry, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, timer_id, user_id, project_id, task_id, note, billable,
		        started_at, ended_at, duration_ms, created_at
		 FROM timesheet_entries
		 WHERE user_id = ? AND started_at >= ? AND started_at < ?
		 ORDER BY started_at ASC`,
		userID,
		formatTime(from),
		formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list timesheet: %w", err)
	}
	defer rows.Close()

	entries := make([]model.TimesheetEntry, 0)
	for rows.Next() {
		entry, scanErr := scanTimesheetEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timesheet: %w", err)
	}
	return entries, nil
}

func insertTimesheetEntryTx(ctx context.Context, tx *sql.Tx, timer *model.Timer) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO timesheet_entries (
			id, timer_id, user_id, project_id, task_id, note, billable,
			started_at, ended_at, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		timer.ID,
		timer.UserID,
		nullableString(timer.ProjectID),
		nullableString(timer.TaskID),
		timer.Note,
		timer.Billable,
		formatTime(timer.StartedAt),
		formatTime(*timer.EndedAt),
		timer.RecordedElapsed.Milliseconds(),
		formatTime(timer.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert timesheet entry: %w", err)
	}
	return nil
}

func timerArgs(t *model.Timer) []interface{} {
	return []interface{}{
		t.ID,
		t.UserID,
		t.Status,
		formatTime(t.StartedAt),
		formatNullableTime(t.PausedAt),
		formatNullableTime(t.SegmentStartedAt),
		int64(t.TotalPaused),
		int64(t.RecordedElapsed),
		formatNullableTime(t.EndedAt),
		nullableString(t.ProjectID),
		nullableString(t.TaskID),
		t.Note,
		t.Billable,
		t.Version,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTimer(s scanner) (*model.Timer, error) {
	timer := model.Timer{}
	var status string
	var startedAt, createdAt, updatedAt string
	var pausedAt, segmentStartedAt, endedAt sql.NullString
	var projectID, taskID sql.NullString
	var totalPaused, recordedElapsed int64
	err := s.Scan(
		&timer.ID,
		&timer.UserID,
		&status,
		&startedAt,
		&pausedAt,
		&segmentStartedAt,
		&totalPaused,
		&recordedElapsed,
		&endedAt,
		&projectID,
		&taskID,
		&timer.Note,
		&timer.Billable,
		&timer.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timer: %w", err)
	}

	timer.Status = model.TimerStatus(status)
	timer.TotalPaused = time.Duration(totalPaused)
	timer.RecordedElapsed = time.Duration(recordedElapsed)
	timer.ProjectID = stringPtr(projectID)
	timer.TaskID = stringPtr(taskID)

	if timer.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse timer started_at: %w", err)
	}
	if timer.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse timer created_at: %w", err)
	}
	if timer.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse timer updated_at: %w", err)
	}
	if timer.PausedAt, err = parseNullableTime(pausedAt, "timer paused_at"); err != nil {
		return nil, err
	}
	if timer.SegmentStartedAt, err = parseNullableTime(segmentStartedAt, "timer segment_started_at"); err != nil {
		return nil, err
	}
	if timer.EndedAt, err = parseNullableTime(endedAt, "timer ended_at"); err != nil {
		return nil, err
	}
	return &timer, nil
}

func scanTimesheetEntry(s scanner) (*model.TimesheetEntry, error) {
	entry := model.TimesheetEntry{}
	var projectID, taskID sql.NullString
	var startedAt, endedAt, createdAt string
	err := s.Scan(
		&entry.ID,
		&entry.TimerID,
		&entry.UserID,
		&projectID,
		&taskID,
		&entry.Note,
		&entry.Billable,
		&startedAt,
		&endedAt,
		&entry.DurationMs,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan timesheet entry: %w", err)
	}

	entry.ProjectID = stringPtr(projectID)
	entry.TaskID = stringPtr(taskID)
	if entry.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse timesheet started_at: %w", err)
	}
	if entry.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, fmt.Errorf("parse timesheet ended_at: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse timesheet created_at: %w", err)
	}
	return &entry, nil
}
