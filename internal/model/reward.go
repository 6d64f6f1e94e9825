package model

import "time"

type RewardKind string

const (
	RewardStarted   RewardKind = "STARTED"
	RewardCompleted RewardKind = "COMPLETED"
)

const (
	AchievementFirstTimer = "first_timer"
	AchievementDeepWork   = "deep_work"
	AchievementMarathon   = "marathon"
)

// RewardEvent is what the timer engine reports to the XP subsystem.
type RewardEvent struct {
	UserID     string
	TimerID    string
	Kind       RewardKind
	Elapsed    time.Duration
	Billable   bool
	OccurredAt time.Time
}

type XPEvent struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TimerID   string     `json:"timerId"`
	Kind      RewardKind `json:"kind"`
	XP        int        `json:"xp"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Achievement struct {
	Code       string    `json:"code"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

type UserProgress struct {
	UserID          string        `json:"userId"`
	XP              int           `json:"xp"`
	Level           int           `json:"level"`
	CompletedTimers int           `json:"completedTimers"`
	TotalTrackedMs  int64         `json:"totalTrackedMs"`
	Achievements    []Achievement `json:"achievements"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}
