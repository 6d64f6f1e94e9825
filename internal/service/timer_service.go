package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"timetrack/backend/internal/clock"
	apperrors "timetrack/backend/internal/errors"
	"timetrack/backend/internal/model"
	"timetrack/backend/internal/repository"
)

const (
	maxNoteRunes      = 2000
	maxReferenceRunes = 128
	maxTimesheetRange = 366 * 24 * time.Hour
)

type TimerStore interface {
	CreateIfNoneActive(ctx context.Context, timer *model.Timer) (*model.Timer, error)
	FindByID(ctx context.Context, id string) (*model.Timer, error)
	FindActiveForUser(ctx context.Context, userID string) (*model.Timer, error)
	Transition(ctx context.Context, id string, mutate func(*model.Timer) error) (*model.Timer, error)
	List(ctx context.Context, userID string, filter repository.TimerFilter) ([]model.Timer, error)
	ListTimesheet(ctx context.Context, userID string, from, to time.Time) ([]model.TimesheetEntry, error)
}

type RewardPublisher interface {
	Publish(ctx context.Context, event model.RewardEvent) error
}

type TimerServiceOptions struct {
	Clock         clock.Clock
	Logger        *slog.Logger
	RewardTimeout time.Duration
}

type TimerService struct {
	store         TimerStore
	rewards       RewardPublisher
	clock         clock.Clock
	logger        *slog.Logger
	rewardTimeout time.Duration
}

type TimerView struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	Status            model.TimerStatus `json:"status"`
	StartedAt         time.Time         `json:"startedAt"`
	PausedAt          *time.Time        `json:"pausedAt,omitempty"`
	EndedAt           *time.Time        `json:"endedAt,omitempty"`
	RecordedElapsedMs int64             `json:"recordedElapsedMs"`
	TotalPausedMs     int64             `json:"totalPausedMs"`
	CurrentElapsedMs  int64             `json:"currentElapsedMs"`
	ProjectID         *string           `json:"projectId,omitempty"`
	TaskID            *string           `json:"taskId,omitempty"`
	Note              string            `json:"note,omitempty"`
	Billable          bool              `json:"billable"`
	Version           int               `json:"version"`
	ServerTime        time.Time         `json:"serverTime"`
}

type StartTimerInput struct {
	ProjectID *string
	TaskID    *string
	Note      string
	Billable  bool
}

type ListTimersInput struct {
	Status    string
	ProjectID string
	From      *time.Time
	To        *time.Time
	Limit     int
}

func NewTimerService(store TimerStore, rewards RewardPublisher, opts TimerServiceOptions) *TimerService {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RewardTimeout <= 0 {
		opts.RewardTimeout = 2 * time.Second
	}
	return &TimerService{
		store:         store,
		rewards:       rewards,
		clock:         opts.Clock,
		logger:        opts.Logger,
		rewardTimeout: opts.RewardTimeout,
	}
}

func (s *TimerService) Start(ctx context.Context, userID string, input StartTimerInput) (*TimerView, *apperrors.APIError) {
	meta, apiErr := normalizeMeta(input)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.clock.Now()
	timer := model.NewTimer(uuid.NewString(), userID, meta, now)
	created, err := s.store.CreateIfNoneActive(ctx, timer)
	if err != nil {
		var conflict *repository.ActiveTimerConflictError
		if errors.As(err, &conflict) {
			return nil, s.activeConflict(conflict.Existing, now)
		}
		return nil, s.storeFailure(err, "failed to start timer", "user", userID)
	}

	s.logger.Debug("timer started", "timer", created.ID, "user", userID)
	s.publish(ctx, created, model.RewardStarted, now)

	view := s.toTimerView(created, now)
	return &view, nil
}

func (s *TimerService) Pause(ctx context.Context, userID, timerID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, timerID, "pause", func(t *model.Timer, now time.Time) error {
		return t.Pause(now)
	})
}

func (s *TimerService) Resume(ctx context.Context, userID, timerID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, timerID, "resume", func(t *model.Timer, now time.Time) error {
		return t.Resume(now)
	})
}

// Complete keeps the timer's note when note is nil.
func (s *TimerService) Complete(ctx context.Context, userID, timerID string, note *string) (*TimerView, *apperrors.APIError) {
	if note != nil {
		normalized, apiErr := normalizeNote(*note)
		if apiErr != nil {
			return nil, apiErr
		}
		note = &normalized
	}
	return s.transition(ctx, userID, timerID, "complete", func(t *model.Timer, now time.Time) error {
		return t.Complete(now, note)
	})
}

func (s *TimerService) Cancel(ctx context.Context, userID, timerID string) (*TimerView, *apperrors.APIError) {
	return s.transition(ctx, userID, timerID, "cancel", func(t *model.Timer, now time.Time) error {
		return t.Cancel(now)
	})
}

func (s *TimerService) Active(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	now := s.clock.Now()
	timer, err := s.store.FindActiveForUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeFailure(err, "failed to get active timer", "user", userID)
	}
	view := s.toTimerView(timer, now)
	return &view, nil
}

func (s *TimerService) Get(ctx context.Context, userID, timerID string) (*TimerView, *apperrors.APIError) {
	now := s.clock.Now()
	timer, apiErr := s.loadOwned(ctx, userID, timerID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := s.toTimerView(timer, now)
	return &view, nil
}

func (s *TimerService) List(ctx context.Context, userID string, input ListTimersInput) ([]TimerView, *apperrors.APIError) {
	filter := repository.TimerFilter{
		Status:    model.TimerStatus(strings.ToUpper(strings.TrimSpace(input.Status))),
		ProjectID: strings.TrimSpace(input.ProjectID),
		From:      input.From,
		To:        input.To,
		Limit:     input.Limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.BadRequest("invalid_filter", "status must be one of RUNNING, PAUSED, COMPLETED, CANCELED")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperrors.BadRequest("invalid_filter", "from must be before to")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	now := s.clock.Now()
	timers, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return nil, s.storeFailure(err, "failed to list timers", "user", userID)
	}

	views := make([]TimerView, 0, len(timers))
	for i := range timers {
		views = append(views, s.toTimerView(&timers[i], now))
	}
	return views, nil
}

// Timesheet defaults to the seven days ending now.
func (s *TimerService) Timesheet(ctx context.Context, userID string, from, to *time.Time) ([]model.TimesheetEntry, *apperrors.APIError) {
	end := s.clock.Now()
	if to != nil {
		end = *to
	}
	start := end.Add(-7 * 24 * time.Hour)
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		return nil, apperrors.BadRequest("invalid_filter", "from must be before to")
	}
	if end.Sub(start) > maxTimesheetRange {
		return nil, apperrors.BadRequest("invalid_filter", "timesheet range is limited to 366 days")
	}

	entries, err := s.store.ListTimesheet(ctx, userID, start, end)
	if err != nil {
		return nil, s.storeFailure(err, "failed to list timesheet", "user", userID)
	}
	return entries, nil
}

func (s *TimerService) transition(
	ctx context.Context,
	userID, timerID, op string,
	apply func(*model.Timer, time.Time) error,
) (*TimerView, *apperrors.APIError) {
	current, apiErr := s.loadOwned(ctx, userID, timerID)
	if apiErr != nil {
		return nil, apiErr
	}
	if current.Status.Terminal() {
		return nil, s.invalidTransition(op, current, s.clock.Now())
	}

	var observed model.Timer
	updated, err := s.store.Transition(ctx, timerID, func(t *model.Timer) error {
		observed = *t
		return apply(t, s.clock.Now())
	})
	if err != nil {
		now := s.clock.Now()
		var transitionErr *model.TransitionError
		var stale *repository.VersionConflictError
		var conflict *repository.ActiveTimerConflictError
		switch {
		case errors.As(err, &transitionErr):
			return nil, s.invalidTransition(op, &observed, now)
		case errors.As(err, &stale):
			return nil, apperrors.InvalidTransition(
				"timer was modified concurrently",
				map[string]interface{}{"timer": s.toTimerView(stale.Current, now)},
			)
		case errors.As(err, &conflict):
			existing, findErr := s.store.FindActiveForUser(ctx, userID)
			if findErr != nil {
				existing = nil
			}
			return nil, s.activeConflict(existing, now)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.TimerNotFound()
		default:
			return nil, s.storeFailure(err, "failed to "+op+" timer", "timer", timerID)
		}
	}

	s.logger.Debug("timer transition", "op", op, "timer", timerID, "user", userID, "status", updated.Status)
	if updated.Status == model.TimerCompleted {
		s.publish(ctx, updated, model.RewardCompleted, updated.UpdatedAt)
	}

	view := s.toTimerView(updated, updated.UpdatedAt)
	return &view, nil
}

// loadOwned reports other users' timers as not found.
func (s *TimerService) loadOwned(ctx context.Context, userID, timerID string) (*model.Timer, *apperrors.APIError) {
	if strings.TrimSpace(timerID) == "" {
		return nil, apperrors.TimerNotFound()
	}
	timer, err := s.store.FindByID(ctx, timerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.TimerNotFound()
	}
	if err != nil {
		return nil, s.storeFailure(err, "failed to load timer", "timer", timerID)
	}
	if timer.UserID != userID {
		return nil, apperrors.TimerNotFound()
	}
	return timer, nil
}

func (s *TimerService) publish(ctx context.Context, timer *model.Timer, kind model.RewardKind, now time.Time) {
	if s.rewards == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rewardTimeout)
	defer cancel()

	event := model.RewardEvent{
		UserID:     timer.UserID,
		TimerID:    timer.ID,
		Kind:       kind,
		Elapsed:    timer.RecordedElapsed,
		Billable:   timer.Billable,
		OccurredAt: now,
	}
	if err := s.rewards.Publish(publishCtx, event); err != nil {
		s.logger.Warn("reward publish failed", "timer", timer.ID, "user", timer.UserID, "kind", kind, "error", err)
	}
}

func (s *TimerService) invalidTransition(op string, current *model.Timer, now time.Time) *apperrors.APIError {
	view := s.toTimerView(current, now)
	return apperrors.InvalidTransition(
		"cannot "+op+" a "+strings.ToLower(string(current.Status))+" timer",
		map[string]interface{}{"timer": view},
	)
}

func (s *TimerService) activeConflict(existing *model.Timer, now time.Time) *apperrors.APIError {
	if existing == nil {
		return apperrors.ActiveTimerConflict(nil)
	}
	view := s.toTimerView(existing, now)
	return apperrors.ActiveTimerConflict(map[string]interface{}{"activeTimer": view})
}

func (s *TimerService) storeFailure(err error, message string, attrs ...any) *apperrors.APIError {
	s.logger.Error(message, append(attrs, "error", err)...)
	if errors.Is(err, repository.ErrInvalidTimer) {
		return apperrors.Internal(message)
	}
	return apperrors.Unavailable(message)
}

func (s *TimerService) toTimerView(timer *model.Timer, now time.Time) TimerView {
	return TimerView{
		ID:                timer.ID,
		UserID:            timer.UserID,
		Status:            timer.Status,
		StartedAt:         timer.StartedAt,
		PausedAt:          timer.PausedAt,
		EndedAt:           timer.EndedAt,
		RecordedElapsedMs: timer.RecordedElapsed.Milliseconds(),
		TotalPausedMs:     timer.TotalPaused.Milliseconds(),
		CurrentElapsedMs:  model.CurrentElapsed(timer, now).Milliseconds(),
		ProjectID:         timer.ProjectID,
		TaskID:            timer.TaskID,
		Note:              timer.Note,
		Billable:          timer.Billable,
		Version:           timer.Version,
		ServerTime:        now,
	}
}

func normalizeMeta(input StartTimerInput) (model.TimerMeta, *apperrors.APIError) {
	note, apiErr := normalizeNote(input.Note)
	if apiErr != nil {
		return model.TimerMeta{}, apiErr
	}
	projectID, apiErr := normalizeReference("projectId", input.ProjectID)
	if apiErr != nil {
		return model.TimerMeta{}, apiErr
	}
	taskID, apiErr := normalizeReference("taskId", input.TaskID)
	if apiErr != nil {
		return model.TimerMeta{}, apiErr
	}
	return model.TimerMeta{
		ProjectID: projectID,
		TaskID:    taskID,
		Note:      note,
		Billable:  input.Billable,
	}, nil
}

func normalizeNote(raw string) (string, *apperrors.APIError) {
	note := norm.NFC.String(strings.TrimSpace(raw))
	if utf8.RuneCountInString(note) > maxNoteRunes {
		return "", apperrors.BadRequest("invalid_note", "note must be at most 2000 characters")
	}
	return note, nil
}

func normalizeReference(field string, raw *string) (*string, *apperrors.APIError) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(value) > maxReferenceRunes {
		return nil, apperrors.BadRequest("invalid_reference", field+" must be at most 128 characters")
	}
	return &value, nil
}
