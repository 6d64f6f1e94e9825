package model

import "time"

// CurrentElapsed returns the active work time of t as of now. It never
// mutates t, so it is safe to call on every read.
func CurrentElapsed(t *Timer, now time.Time) time.Duration {
	if t.Status != TimerRunning || t.SegmentStartedAt == nil {
		return t.RecordedElapsed
	}
	return t.RecordedElapsed + span(*t.SegmentStartedAt, now)
}
