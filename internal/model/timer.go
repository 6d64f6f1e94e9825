package model

import (
	"fmt"
	"time"
)

type TimerStatus string

const (
	TimerRunning   TimerStatus = "RUNNING"
	TimerPaused    TimerStatus = "PAUSED"
	TimerCompleted TimerStatus = "COMPLETED"
	TimerCanceled  TimerStatus = "CANCELED"
)

// Active reports whether a timer in this status counts toward the
// one-active-timer-per-user rule.
func (s TimerStatus) Active() bool {
	return s == TimerRunning || s == TimerPaused
}

func (s TimerStatus) Terminal() bool {
	return s == TimerCompleted || s == TimerCanceled
}

func (s TimerStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

// Timer is a single tracked span of work owned by one user.
//
// Status is the discriminant: PausedAt is only set while PAUSED,
// SegmentStartedAt only while RUNNING, EndedAt only once terminal.
// Mutate a Timer through Pause, Resume, Complete and Cancel so the
// per-status fields stay consistent.
type Timer struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	Status           TimerStatus   `json:"status"`
	StartedAt        time.Time     `json:"startedAt"`
	PausedAt         *time.Time    `json:"pausedAt,omitempty"`
	SegmentStartedAt *time.Time    `json:"-"`
	TotalPaused      time.Duration `json:"-"`
	RecordedElapsed  time.Duration `json:"-"`
	EndedAt          *time.Time    `json:"endedAt,omitempty"`
	ProjectID        *string       `json:"projectId,omitempty"`
	TaskID           *string       `json:"taskId,omitempty"`
	Note             string        `json:"note,omitempty"`
	Billable         bool          `json:"billable"`
	Version          int           `json:"version"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// TimerMeta is the descriptive data supplied when a timer starts.
type TimerMeta struct {
	ProjectID *string
	TaskID    *string
	Note      string
	Billable  bool
}

// TransitionError is returned when an operation is not legal from the
// timer's current status.
type TransitionError struct {
	Op   string
	From TimerStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s timer", e.Op, e.From)
}

// NewTimer returns a RUNNING timer whose first segment starts at now.
func NewTimer(id, userID string, meta TimerMeta, now time.Time) *Timer {
	segment := now
	return &Timer{
		ID:               id,
		UserID:           userID,
		Status:           TimerRunning,
		StartedAt:        now,
		SegmentStartedAt: &segment,
		ProjectID:        meta.ProjectID,
		TaskID:           meta.TaskID,
		Note:             meta.Note,
		Billable:         meta.Billable,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Pause closes the running segment and adds it to RecordedElapsed.
func (t *Timer) Pause(now time.Time) error {
	if t.Status != TimerRunning {
		return &TransitionError{Op: "pause", From: t.Status}
	}
	t.RecordedElapsed += span(*t.SegmentStartedAt, now)
	paused := now
	t.PausedAt = &paused
	t.SegmentStartedAt = nil
	t.Status = TimerPaused
	t.touch(now)
	return nil
}

// Resume adds the pause interval to TotalPaused and opens a new segment.
func (t *Timer) Resume(now time.Time) error {
	if t.Status != TimerPaused {
		return &TransitionError{Op: "resume", From: t.Status}
	}
	t.TotalPaused += span(*t.PausedAt, now)
	segment := now
	t.SegmentStartedAt = &segment
	t.PausedAt = nil
	t.Status = TimerRunning
	t.touch(now)
	return nil
}

// Complete finalizes RecordedElapsed and ends the timer. A nil note keeps
// the existing one.
func (t *Timer) Complete(now time.Time, note *string) error {
	if !t.Status.Active() {
		return &TransitionError{Op: "complete", From: t.Status}
	}
	if t.Status == TimerRunning {
		t.RecordedElapsed += span(*t.SegmentStartedAt, now)
	}
	if note != nil {
		t.Note = *note
	}
	t.end(TimerCompleted, now)
	return nil
}

// Cancel ends the timer without accruing the in-progress segment.
func (t *Timer) Cancel(now time.Time) error {
	if !t.Status.Active() {
		return &TransitionError{Op: "cancel", From: t.Status}
	}
	t.end(TimerCanceled, now)
	return nil
}

// Validate checks that the per-status fields agree with Status.
func (t *Timer) Validate() error {
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if (t.Status == TimerPaused) != (t.PausedAt != nil) {
		return fmt.Errorf("%s timer: pausedAt set=%t", t.Status, t.PausedAt != nil)
	}
	if (t.Status == TimerRunning) != (t.SegmentStartedAt != nil) {
		return fmt.Errorf("%s timer: segmentStartedAt set=%t", t.Status, t.SegmentStartedAt != nil)
	}
	if t.Status.Terminal() != (t.EndedAt != nil) {
		return fmt.Errorf("%s timer: endedAt set=%t", t.Status, t.EndedAt != nil)
	}
	if t.RecordedElapsed < 0 || t.TotalPaused < 0 {
		return fmt.Errorf("negative duration on timer %s", t.ID)
	}
	return nil
}

func (t *Timer) end(status TimerStatus, now time.Time) {
	ended := now
	t.EndedAt = &ended
	t.PausedAt = nil
	t.SegmentStartedAt = nil
	t.Status = status
	t.touch(now)
}

func (t *Timer) touch(now time.Time) {
	t.UpdatedAt = now
	t.Version++
}

// span is to-from, clamped at zero when the clock stepped backwards.
func span(from, to time.Time) time.Duration {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return d
}
