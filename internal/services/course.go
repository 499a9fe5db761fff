package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/kumudkode/lms-apiserver/internal/storage"
	"github.com/kumudkode/lms-apiserver/types"
)

// ErrNoVideo is returned when a lesson has no uploaded video.
var ErrNoVideo = errors.New("lesson has no video")

// ErrStorageDisabled is returned when no object storage backend is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// CourseRepository defines persistence operations for courses and lessons.
type CourseRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Course, int, error)
	Get(ctx context.Context, id int) (types.Course, error)
	Create(ctx context.Context, course types.Course) (types.Course, error)
	Update(ctx context.Context, course types.Course) (types.Course, error)
	Delete(ctx context.Context, id int) error
	ListLessons(ctx context.Context, courseID int) ([]types.Lesson, error)
	GetLesson(ctx context.Context, courseID, lessonID int) (types.Lesson, error)
	CreateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error)
	UpdateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error)
	DeleteLesson(ctx context.Context, courseID, lessonID int) error
}

// CourseService encapsulates course and lesson use-cases, including lesson
// video assets held in object storage.
type CourseService struct {
	repo    CourseRepository
	storage *storage.Storage
}

// NewCourseService constructs a CourseService. storage may be nil when no
// object storage backend is configured; video operations then fail with
// ErrStorageDisabled.
func NewCourseService(repo CourseRepository, storage *storage.Storage) *CourseService {
	return &CourseService{repo: repo, storage: storage}
}

func (s *CourseService) List(ctx context.Context, offset, limit int) ([]types.Course, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *CourseService) Get(ctx context.Context, id int) (types.Course, error) {
	return s.repo.Get(ctx, id)
}

func (s *CourseService) Create(ctx context.Context, course types.Course) (types.Course, error) {
	return s.repo.Create(ctx, course)
}

func (s *CourseService) Update(ctx context.Context, course types.Course) (types.Course, error) {
	return s.repo.Update(ctx, course)
}

func (s *CourseService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *CourseService) ListLessons(ctx context.Context, courseID int) ([]types.Lesson, error) {
	return s.repo.ListLessons(ctx, courseID)
}

func (s *CourseService) GetLesson(ctx context.Context, courseID, lessonID int) (types.Lesson, error) {
	return s.repo.GetLesson(ctx, courseID, lessonID)
}

func (s *CourseService) CreateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	return s.repo.CreateLesson(ctx, lesson)
}

func (s *CourseService) UpdateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	return s.repo.UpdateLesson(ctx, lesson)
}

func (s *CourseService) DeleteLesson(ctx context.Context, courseID, lessonID int) error {
	return s.repo.DeleteLesson(ctx, courseID, lessonID)
}

// UploadLessonVideo stores the video content for a lesson and records the
// object key on the lesson. The previous object, if any, is removed after
// the lesson row is updated.
func (s *CourseService) UploadLessonVideo(ctx context.Context, courseID, lessonID int, r io.Reader, size int64, contentType string) (types.Lesson, error) {
	if s.storage == nil {
		return types.Lesson{}, ErrStorageDisabled
	}

	lesson, err := s.repo.GetLesson(ctx, courseID, lessonID)
	if err != nil {
		return types.Lesson{}, err
	}

	key := fmt.Sprintf("lessons/%s", uuid.NewString())
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Lesson{}, fmt.Errorf("upload lesson video: %w", err)
	}

	previousKey := lesson.VideoKey
	lesson.VideoKey = key
	updated, err := s.repo.UpdateLesson(ctx, lesson)
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return types.Lesson{}, err
	}

	if previousKey != "" {
		_ = s.storage.Delete(ctx, previousKey)
	}
	return updated, nil
}

// OpenLessonVideo opens a reader over the lesson's stored video content.
func (s *CourseService) OpenLessonVideo(ctx context.Context, courseID, lessonID int) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	lesson, err := s.repo.GetLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.VideoKey == "" {
		return nil, ErrNoVideo
	}
	return s.storage.Get(ctx, lesson.VideoKey)
}
