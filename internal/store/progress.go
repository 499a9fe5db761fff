package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kumudkode/lms-apiserver/types"
)

// ProgressRepository handles persistence for lesson playback progress.
type ProgressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Get(ctx context.Context, userID, lessonID int) (types.LessonProgress, error) {
	const query = `
		SELECT user_id, lesson_id, progress_seconds, completed, updated_at
		FROM lesson_progress
		WHERE user_id = $1 AND lesson_id = $2`
	var progress types.LessonProgress
	err := r.db.QueryRowContext(ctx, query, userID, lessonID).Scan(
		&progress.UserID,
		&progress.LessonID,
		&progress.ProgressSeconds,
		&progress.Completed,
		&progress.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LessonProgress{}, ErrNotFound
		}
		return types.LessonProgress{}, err
	}
	return progress, nil
}

// Upsert writes a progress report. The completed flag is monotonic: once a
// row is completed it stays completed regardless of later partial reports.
func (r *ProgressRepository) Upsert(ctx context.Context, progress types.LessonProgress) (types.LessonProgress, error) {
	progress.UpdatedAt = time.Now()

	const query = `
		INSERT INTO lesson_progress (user_id, lesson_id, progress_seconds, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET progress_seconds = EXCLUDED.progress_seconds,
			completed = lesson_progress.completed OR EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at
		RETURNING completed`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		progress.UserID,
		progress.LessonID,
		progress.ProgressSeconds,
		progress.Completed,
		progress.UpdatedAt,
	).Scan(&progress.Completed); err != nil {
		return types.LessonProgress{}, err
	}
	return progress, nil
}

// ListByUser returns all progress rows for a user, most recent first.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID int) ([]types.LessonProgress, error) {
	const query = `
		SELECT user_id, lesson_id, progress_seconds, completed, updated_at
		FROM lesson_progress
		WHERE user_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.LessonProgress, 0)
	for rows.Next() {
		var progress types.LessonProgress
		if err := rows.Scan(
			&progress.UserID,
			&progress.LessonID,
			&progress.ProgressSeconds,
			&progress.Completed,
			&progress.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, progress)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
