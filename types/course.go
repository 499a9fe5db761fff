package types

import "time"

// Course represents a published course in the catalog.
type Course struct {
	// ID is the unique identifier of the course.
	ID int `json:"id" db:"id"`

	// Title is the display title of the course.
	Title string `json:"title" db:"title"`

	// Description is the long-form course description.
	Description string `json:"description" db:"description"`

	// InstructorID identifies the user who owns the course.
	InstructorID int `json:"instructor_id" db:"instructor_id"`

	// CreatedAt is the timestamp when the course was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the course.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Lesson represents a single video lesson inside a course.
type Lesson struct {
	// ID is the unique identifier of the lesson.
	ID int `json:"id" db:"id"`

	// CourseID identifies the course this lesson belongs to.
	CourseID int `json:"course_id" db:"course_id"`

	// Title is the display title of the lesson.
	Title string `json:"title" db:"title"`

	// Position orders lessons within a course, starting at 1.
	Position int `json:"position" db:"position"`

	// DurationSeconds is the total playback length of the lesson video.
	DurationSeconds float64 `json:"duration_seconds" db:"duration_seconds"`

	// VideoKey is the object storage key of the lesson video.
	// Empty until a video has been uploaded.
	VideoKey string `json:"video_key,omitempty" db:"video_key"`

	// CreatedAt is the timestamp when the lesson was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the lesson.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
