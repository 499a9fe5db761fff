package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kumudkode/lms-apiserver/types"
)

// CourseRepository handles persistence for courses and their lessons.
type CourseRepository struct {
	db *sql.DB
}

func NewCourseRepository(db *sql.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) List(ctx context.Context, offset, limit int) ([]types.Course, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM courses`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT id, title, description, instructor_id, created_at, updated_at
		FROM courses
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := make([]types.Course, 0, limit)
	for rows.Next() {
		var course types.Course
		if err := rows.Scan(
			&course.ID,
			&course.Title,
			&course.Description,
			&course.InstructorID,
			&course.CreatedAt,
			&course.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		courses = append(courses, course)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

func (r *CourseRepository) Get(ctx context.Context, id int) (types.Course, error) {
	const query = `
		SELECT id, title, description, instructor_id, created_at, updated_at
		FROM courses
		WHERE id = $1`
	var course types.Course
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&course.ID,
		&course.Title,
		&course.Description,
		&course.InstructorID,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Course{}, ErrNotFound
		}
		return types.Course{}, err
	}
	return course, nil
}

func (r *CourseRepository) Create(ctx context.Context, course types.Course) (types.Course, error) {
	now := time.Now()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `
		INSERT INTO courses (title, description, instructor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		course.Title,
		course.Description,
		course.InstructorID,
		course.CreatedAt,
		course.UpdatedAt,
	).Scan(&course.ID); err != nil {
		return types.Course{}, err
	}
	return course, nil
}

func (r *CourseRepository) Update(ctx context.Context, course types.Course) (types.Course, error) {
	course.UpdatedAt = time.Now()

	const query = `
		UPDATE courses
		SET title = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(
		ctx,
		query,
		course.Title,
		course.Description,
		course.UpdatedAt,
		course.ID,
	)
	if err != nil {
		return types.Course{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Course{}, err
	}
	if affected == 0 {
		return types.Course{}, ErrNotFound
	}
	return course, nil
}

func (r *CourseRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM courses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CourseRepository) ListLessons(ctx context.Context, courseID int) ([]types.Lesson, error) {
	const query = `
		SELECT id, course_id, title, position, duration_seconds, video_key, created_at, updated_at
		FROM lessons
		WHERE course_id = $1
		ORDER BY position, id`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lessons := make([]types.Lesson, 0)
	for rows.Next() {
		var lesson types.Lesson
		if err := rows.Scan(
			&lesson.ID,
			&lesson.CourseID,
			&lesson.Title,
			&lesson.Position,
			&lesson.DurationSeconds,
			&lesson.VideoKey,
			&lesson.CreatedAt,
			&lesson.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lessons, nil
}

func (r *CourseRepository) GetLesson(ctx context.Context, courseID, lessonID int) (types.Lesson, error) {
	const query = `
		SELECT id, course_id, title, position, duration_seconds, video_key, created_at, updated_at
		FROM lessons
		WHERE id = $1 AND course_id = $2`
	var lesson types.Lesson
	err := r.db.QueryRowContext(ctx, query, lessonID, courseID).Scan(
		&lesson.ID,
		&lesson.CourseID,
		&lesson.Title,
		&lesson.Position,
		&lesson.DurationSeconds,
		&lesson.VideoKey,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Lesson{}, ErrNotFound
		}
		return types.Lesson{}, err
	}
	return lesson, nil
}

func (r *CourseRepository) CreateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	now := time.Now()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	const query = `
		INSERT INTO lessons (course_id, title, position, duration_seconds, video_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		lesson.CourseID,
		lesson.Title,
		lesson.Position,
		lesson.DurationSeconds,
		lesson.VideoKey,
		lesson.CreatedAt,
		lesson.UpdatedAt,
	).Scan(&lesson.ID); err != nil {
		return types.Lesson{}, err
	}
	return lesson, nil
}

func (r *CourseRepository) UpdateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	lesson.UpdatedAt = time.Now()

	const query = `
		UPDATE lessons
		SET title = $1,
			position = $2,
			duration_seconds = $3,
			video_key = $4,
			updated_at = $5
		WHERE id = $6 AND course_id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		lesson.Title,
		lesson.Position,
		lesson.DurationSeconds,
		lesson.VideoKey,
		lesson.UpdatedAt,
		lesson.ID,
		lesson.CourseID,
	)
	if err != nil {
		return types.Lesson{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Lesson{}, err
	}
	if affected == 0 {
		return types.Lesson{}, ErrNotFound
	}
	return lesson, nil
}

func (r *CourseRepository) DeleteLesson(ctx context.Context, courseID, lessonID int) error {
	const query = `DELETE FROM lessons WHERE id = $1 AND course_id = $2`
	result, err := r.db.ExecContext(ctx, query, lessonID, courseID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
