package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/internal/store"
	"github.com/kumudkode/lms-apiserver/types"
)

// LessonCompletedChannel is the MQ channel carrying completion events.
const LessonCompletedChannel = "lesson.completed"

// ProgressRepository defines persistence operations for lesson progress.
type ProgressRepository interface {
	Get(ctx context.Context, userID, lessonID int) (types.LessonProgress, error)
	Upsert(ctx context.Context, progress types.LessonProgress) (types.LessonProgress, error)
	ListByUser(ctx context.Context, userID int) ([]types.LessonProgress, error)
}

// Publisher sends analytics events. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// LessonCompletedEvent is published when a user first completes a lesson.
type LessonCompletedEvent struct {
	UserID          int       `json:"user_id"`
	CourseID        int       `json:"course_id"`
	LessonID        int       `json:"lesson_id"`
	ProgressSeconds float64   `json:"progress_seconds"`
	CompletedAt     time.Time `json:"completed_at"`
}

// ProgressService encapsulates playback progress use-cases.
type ProgressService struct {
	repo      ProgressRepository
	publisher Publisher
}

// NewProgressService constructs a ProgressService. publisher may be nil when
// no MQ backend is configured; completion events are then skipped.
func NewProgressService(repo ProgressRepository, publisher Publisher) *ProgressService {
	return &ProgressService{repo: repo, publisher: publisher}
}

// Get returns the stored progress for a lesson. A user who never reported
// progress gets a zero-valued record, not an error.
func (s *ProgressService) Get(ctx context.Context, userID, lessonID int) (types.LessonProgress, error) {
	progress, err := s.repo.Get(ctx, userID, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.LessonProgress{UserID: userID, LessonID: lessonID}, nil
		}
		return types.LessonProgress{}, err
	}
	return progress, nil
}

// Record upserts a progress report. The completed flag only ever moves from
// false to true; when that transition happens a lesson.completed event is
// published. Publishing is best effort: a broker failure is logged and does
// not fail the report.
func (s *ProgressService) Record(ctx context.Context, courseID int, progress types.LessonProgress) (types.LessonProgress, error) {
	previous, err := s.repo.Get(ctx, progress.UserID, progress.LessonID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.LessonProgress{}, err
	}

	stored, err := s.repo.Upsert(ctx, progress)
	if err != nil {
		return types.LessonProgress{}, err
	}

	if stored.Completed && !previous.Completed {
		s.publishCompleted(ctx, courseID, stored)
	}
	return stored, nil
}

// ListByUser returns every progress record a user holds.
func (s *ProgressService) ListByUser(ctx context.Context, userID int) ([]types.LessonProgress, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *ProgressService) publishCompleted(ctx context.Context, courseID int, progress types.LessonProgress) {
	if s.publisher == nil {
		return
	}

	event := LessonCompletedEvent{
		UserID:          progress.UserID,
		CourseID:        courseID,
		LessonID:        progress.LessonID,
		ProgressSeconds: progress.ProgressSeconds,
		CompletedAt:     progress.UpdatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("encode lesson.completed event")
		return
	}

	if _, err := s.publisher.Publish(ctx, LessonCompletedChannel, data, map[string]string{
		"content-type": "application/json",
	}); err != nil {
		logging.Warn().Err(err).
			Int("user_id", progress.UserID).
			Int("lesson_id", progress.LessonID).
			Msg("publish lesson.completed event")
	}
}
