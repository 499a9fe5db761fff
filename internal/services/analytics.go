package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/internal/mq"
)

// Subscriber consumes messages from a broker channel. *mq.MQ satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// CompletionAnalytics consumes lesson.completed events and keeps running
// completion tallies. It backs the analytics worker process.
type CompletionAnalytics struct {
	queue Subscriber

	mu       sync.Mutex
	byLesson map[int]int
	total    int
}

// NewCompletionAnalytics constructs a consumer over the given queue.
func NewCompletionAnalytics(queue Subscriber) *CompletionAnalytics {
	return &CompletionAnalytics{
		queue:    queue,
		byLesson: map[int]int{},
	}
}

// Run subscribes to the completion channel and blocks until ctx is done or
// the subscription fails.
func (a *CompletionAnalytics) Run(ctx context.Context) error {
	return a.queue.Subscribe(ctx, LessonCompletedChannel, a.handle)
}

// handle tallies one completion event. A payload that does not decode is
// dropped with a warning rather than nacked: redelivery cannot fix it.
func (a *CompletionAnalytics) handle(ctx context.Context, msg mq.Message) error {
	var event LessonCompletedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logging.Warn().Err(err).
			Str("message_id", msg.ID).
			Msg("drop malformed lesson.completed event")
		return nil
	}

	a.mu.Lock()
	a.byLesson[event.LessonID]++
	total := a.total + 1
	a.total = total
	a.mu.Unlock()

	logging.Info().
		Int("user_id", event.UserID).
		Int("course_id", event.CourseID).
		Int("lesson_id", event.LessonID).
		Int("total_completions", total).
		Msg("lesson completed")
	return nil
}

// Completions returns the number of completions seen for a lesson.
func (a *CompletionAnalytics) Completions(lessonID int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byLesson[lessonID]
}

// Total returns the number of completions seen across all lessons.
func (a *CompletionAnalytics) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}
