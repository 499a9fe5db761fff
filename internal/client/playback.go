package client

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kumudkode/lms-apiserver/internal/logging"
)

const (
	// defaultSyncInterval is how often a playing tracker considers a
	// progress report.
	defaultSyncInterval = 30 * time.Second

	// minReportDelta is the minimum position change, in seconds, that
	// justifies a periodic report. Completion reports bypass it.
	minReportDelta = 10.0

	// completionThreshold is the watched fraction a lesson must exceed to
	// count as completed.
	completionThreshold = 0.9
)

// ProgressSync persists playback progress for a single lesson. The tracker
// talks to it instead of the HTTP client directly so tests can observe
// reports without a server.
type ProgressSync interface {
	// Load returns the last saved position and completion flag.
	Load(ctx context.Context) (progressSeconds float64, completed bool, err error)

	// Report saves the current position. Completion is monotonic on the
	// server, so reporting completed=false after true is harmless.
	Report(ctx context.Context, progressSeconds float64, completed bool) error
}

// LessonSync is the ProgressSync backed by the REST API.
type LessonSync struct {
	API      *Client
	Token    func() string
	CourseID int
	LessonID int
}

func (s *LessonSync) Load(ctx context.Context) (float64, bool, error) {
	result, err := s.API.LessonProgress(ctx, s.Token(), s.CourseID, s.LessonID)
	if err != nil {
		return 0, false, err
	}
	return result.ProgressSeconds, result.Completed, nil
}

func (s *LessonSync) Report(ctx context.Context, progressSeconds float64, completed bool) error {
	return s.API.ReportProgress(ctx, s.Token(), s.CourseID, s.LessonID, progressSeconds, completed)
}

// PlaybackState is the tracker's playback state.
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
	PlaybackPaused
	PlaybackEnded
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TrackerConfig configures a PlaybackTracker.
type TrackerConfig struct {
	// Sync persists progress. Required.
	Sync ProgressSync

	// DurationSeconds is the lesson length. Required and positive.
	DurationSeconds float64

	// SyncInterval overrides the periodic report interval. Zero means the
	// default of 30 seconds.
	SyncInterval time.Duration
}

// PlaybackTracker follows one lesson's playback and syncs its position to
// the server on a best-effort basis: a failed report is logged and retried
// at the next tick, never surfaced to the viewer.
//
// One tracker serves one playback of one lesson. Create it when the player
// opens, Start it, and Stop it when the player closes.
type PlaybackTracker struct {
	sync     ProgressSync
	duration float64
	interval time.Duration

	mu           sync.Mutex
	state        PlaybackState
	position     float64
	lastReported float64
	completed    bool
	inFlight     bool
	pendingFlush bool
	stop         chan struct{}
	done         chan struct{}
}

// NewPlaybackTracker constructs a tracker in the idle state.
func NewPlaybackTracker(cfg TrackerConfig) *PlaybackTracker {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &PlaybackTracker{
		sync:     cfg.Sync,
		duration: cfg.DurationSeconds,
		interval: interval,
		state:    PlaybackIdle,
	}
}

// Start loads the saved position so the player can resume from it, then
// begins the periodic sync loop. A load failure starts playback from zero
// rather than blocking the viewer.
func (t *PlaybackTracker) Start(ctx context.Context) float64 {
	saved, completed, err := t.sync.Load(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("load playback position")
		saved, completed = 0, false
	}

	t.mu.Lock()
	t.position = saved
	t.lastReported = saved
	t.completed = completed
	t.state = PlaybackPlaying
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	stop, done := t.stop, t.done
	t.mu.Unlock()

	go t.loop(stop, done)
	return saved
}

func (t *PlaybackTracker) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.maybeReport(false)
		}
	}
}

// Play resumes a paused tracker.
func (t *PlaybackTracker) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == PlaybackPaused {
		t.state = PlaybackPlaying
	}
}

// Pause suspends position advancement. Pausing forces a report so a
// mid-lesson exit right after pausing loses nothing.
func (t *PlaybackTracker) Pause() {
	t.mu.Lock()
	if t.state != PlaybackPlaying {
		t.mu.Unlock()
		return
	}
	t.state = PlaybackPaused
	t.mu.Unlock()

	t.maybeReport(true)
}

// SetPosition updates the current playback position, as reported by the
// player. Positions are clamped to [0, duration].
func (t *PlaybackTracker) SetPosition(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if seconds > t.duration {
		seconds = t.duration
	}
	t.position = seconds
}

// Position returns the current playback position.
func (t *PlaybackTracker) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// State returns the current playback state.
func (t *PlaybackTracker) State() PlaybackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Completed reports whether this playback has crossed the completion
// threshold or resumed an already-completed lesson.
func (t *PlaybackTracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// End marks playback finished: the position snaps to the full duration and
// a completion report is sent regardless of the delta threshold.
func (t *PlaybackTracker) End() {
	t.mu.Lock()
	t.state = PlaybackEnded
	t.position = t.duration
	t.completed = true
	t.mu.Unlock()

	t.maybeReport(true)
}

// Stop halts the sync loop and flushes a final report. Safe to call on a
// tracker that was never started.
func (t *PlaybackTracker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	if t.state == PlaybackPlaying || t.state == PlaybackPaused {
		t.state = PlaybackIdle
	}
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
		t.maybeReport(true)
	}
}

// maybeReport sends a progress report when warranted. Periodic reports are
// skipped while paused, while a previous report is still in flight, or when
// the position moved less than the delta threshold since the last report.
// A forced report that collides with an in-flight one is deferred, not
// dropped: the completion write from End must always land.
func (t *PlaybackTracker) maybeReport(force bool) {
	t.mu.Lock()
	if t.inFlight {
		if force {
			t.pendingFlush = true
		}
		t.mu.Unlock()
		return
	}
	if !force {
		if t.state != PlaybackPlaying {
			t.mu.Unlock()
			return
		}
		if math.Abs(t.position-t.lastReported) < minReportDelta {
			t.mu.Unlock()
			return
		}
	}

	position := t.position
	completed := t.completed
	if t.duration > 0 && position > t.duration*completionThreshold {
		completed = true
	}
	t.completed = completed
	t.inFlight = true
	t.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()
		err := t.sync.Report(ctx, position, completed)

		t.mu.Lock()
		t.inFlight = false
		if err == nil {
			t.lastReported = position
		}
		flush := t.pendingFlush
		t.pendingFlush = false
		t.mu.Unlock()

		if err != nil {
			logging.Warn().Err(err).Float64("position", position).Msg("report playback progress")
		}
		if flush {
			t.maybeReport(true)
		}
	}()
}
