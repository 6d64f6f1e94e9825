package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"timetrack/backend/internal/clock"
	apperrors "timetrack/backend/internal/errors"
	"timetrack/backend/internal/model"
	"timetrack/backend/internal/repository"
)

const (
	startXP           = 5
	completionBonusXP = 25
	deepWorkThreshold = 2 * time.Hour
	marathonThreshold = 100 * time.Hour
)

// RewardService turns timer events into XP, levels and achievements.
// Each (timer, kind) pair is counted once, so a repeated Publish is harmless.
type RewardService struct {
	repo   *repository.RewardRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewRewardService(repo *repository.RewardRepository, clk clock.Clock, logger *slog.Logger) *RewardService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RewardService{repo: repo, clock: clk, logger: logger}
}

func (s *RewardService) Publish(ctx context.Context, event model.RewardEvent) error {
	xp, err := xpFor(event)
	if err != nil {
		return err
	}

	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	recorded, err := s.repo.RecordEvent(ctx, model.XPEvent{
		ID:        uuid.NewString(),
		UserID:    event.UserID,
		TimerID:   event.TimerID,
		Kind:      event.Kind,
		XP:        xp,
		CreatedAt: createdAt,
	}, func(progress *model.UserProgress) []string {
		return applyReward(progress, event, xp)
	})
	if err != nil {
		return fmt.Errorf("record %s reward for timer %s: %w", event.Kind, event.TimerID, err)
	}
	if !recorded {
		s.logger.Debug("reward already recorded", "timer", event.TimerID, "kind", event.Kind)
	}
	return nil
}

func (s *RewardService) Progress(ctx context.Context, userID string) (*model.UserProgress, *apperrors.APIError) {
	progress, err := s.repo.GetProgress(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.UserProgress{
			UserID:       userID,
			Level:        1,
			Achievements: []model.Achievement{},
		}, nil
	}
	if err != nil {
		s.logger.Error("get progress failed", "user", userID, "error", err)
		return nil, apperrors.Unavailable("failed to get progress")
	}
	return progress, nil
}

func xpFor(event model.RewardEvent) (int, error) {
	switch event.Kind {
	case model.RewardStarted:
		return startXP, nil
	case model.RewardCompleted:
		minutes := int(event.Elapsed / time.Minute)
		if event.Billable {
			minutes = minutes * 3 / 2
		}
		return minutes + completionBonusXP, nil
	default:
		return 0, fmt.Errorf("unknown reward kind %q", event.Kind)
	}
}

func applyReward(progress *model.UserProgress, event model.RewardEvent, xp int) []string {
	progress.XP += xp
	progress.Level = levelFor(progress.XP)
	if event.Kind != model.RewardCompleted {
		return nil
	}

	progress.CompletedTimers++
	progress.TotalTrackedMs += event.Elapsed.Milliseconds()

	var unlocked []string
	if progress.CompletedTimers == 1 {
		unlocked = append(unlocked, model.AchievementFirstTimer)
	}
	if event.Elapsed >= deepWorkThreshold {
		unlocked = append(unlocked, model.AchievementDeepWork)
	}
	if progress.TotalTrackedMs >= marathonThreshold.Milliseconds() {
		unlocked = append(unlocked, model.AchievementMarathon)
	}
	return unlocked
}

// levelFor grows quadratically: 100 XP for level 2, 400 for 3, 900 for 4.
func levelFor(xp int) int {
	if xp <= 0 {
		return 1
	}
	return 1 + int(math.Sqrt(float64(xp)/100))
}
