package types

import "time"

// LessonProgress records the last known playback position of a user in a
// lesson. One row exists per (user, lesson) pair.
type LessonProgress struct {
	// UserID identifies the user this progress belongs to.
	UserID int `json:"user_id" db:"user_id"`

	// LessonID identifies the lesson being watched.
	LessonID int `json:"lesson_id" db:"lesson_id"`

	// ProgressSeconds is the last reported playback offset.
	ProgressSeconds float64 `json:"progress_seconds" db:"progress_seconds"`

	// Completed is true once the user has watched past the completion
	// threshold. It never reverts to false from further partial reports.
	Completed bool `json:"completed" db:"completed"`

	// UpdatedAt is the timestamp of the most recent progress report.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
