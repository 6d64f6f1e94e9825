package model

import "time"

// TimesheetEntry is the billable record written when a timer completes.
type TimesheetEntry struct {
	ID         string    `json:"id"`
	TimerID    string    `json:"timerId"`
	UserID     string    `json:"userId"`
	ProjectID  *string   `json:"projectId,omitempty"`
	TaskID     *string   `json:"taskId,omitempty"`
	Note       string    `json:"note,omitempty"`
	Billable   bool      `json:"billable"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
