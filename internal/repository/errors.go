package repository

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"timetrack/backend/internal/model"
)

var ErrNotFound = errors.New("not found")

// ErrInvalidTimer wraps a timer whose fields disagree with its status.
// It is never written.
var ErrInvalidTimer = errors.New("invalid timer")

// ActiveTimerConflictError is returned when a user already owns a RUNNING
// or PAUSED timer. Existing is nil if that timer ended before it could be
// read back.
type ActiveTimerConflictError struct {
	UserID   string
	Existing *model.Timer
}

func (e *ActiveTimerConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("user %s already has active timer %s", e.UserID, e.Existing.ID)
	}
	return fmt.Sprintf("user %s already has an active timer", e.UserID)
}

// VersionConflictError is returned when the timer row changed between the
// read and the guarded UPDATE of a transition.
type VersionConflictError struct {
	Expected int
	Current  *model.Timer
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("timer %s is at version %d, expected %d", e.Current.ID, e.Current.Version, e.Expected)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}
