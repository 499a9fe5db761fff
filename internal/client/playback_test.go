package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type reportedProgress struct {
	seconds   float64
	completed bool
}

// fakeSync records every report and can fail on demand.
type fakeSync struct {
	mu            sync.Mutex
	savedPosition float64
	savedDone     bool
	loadErr       error
	reportErr     error
	reports       []reportedProgress
}

func (s *fakeSync) Load(ctx context.Context) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return 0, false, s.loadErr
	}
	return s.savedPosition, s.savedDone, nil
}

func (s *fakeSync) Report(ctx context.Context, seconds float64, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportErr != nil {
		return s.reportErr
	}
	s.reports = append(s.reports, reportedProgress{seconds: seconds, completed: completed})
	return nil
}

func (s *fakeSync) setReportErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportErr = err
}

func (s *fakeSync) reportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func (s *fakeSync) lastReport() (reportedProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return reportedProgress{}, false
	}
	return s.reports[len(s.reports)-1], true
}

func newTestTracker(fake *fakeSync, duration float64) *PlaybackTracker {
	return NewPlaybackTracker(TrackerConfig{
		Sync:            fake,
		DurationSeconds: duration,
		SyncInterval:    10 * time.Millisecond,
	})
}

func TestTracker_StartResumesSavedPosition(t *testing.T) {
	fake := &fakeSync{savedPosition: 42.5}
	tracker := newTestTracker(fake, 100)
	defer tracker.Stop()

	resume := tracker.Start(context.Background())
	require.Equal(t, 42.5, resume)
	require.Equal(t, 42.5, tracker.Position())
	require.Equal(t, PlaybackPlaying, tracker.State())
}

func TestTracker_LoadFailureStartsFromZero(t *testing.T) {
	fake := &fakeSync{loadErr: errors.New("server unreachable")}
	tracker := newTestTracker(fake, 100)
	defer tracker.Stop()

	resume := tracker.Start(context.Background())
	require.Zero(t, resume)
	require.Equal(t, PlaybackPlaying, tracker.State())
}

func TestTracker_PeriodicReportNeedsDelta(t *testing.T) {
	fake := &fakeSync{}
	tracker := newTestTracker(fake, 600)
	defer tracker.Stop()
	tracker.Start(context.Background())

	// Below the delta threshold: ticks come and go without a report.
	tracker.SetPosition(5)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, fake.reportCount())

	tracker.SetPosition(20)
	require.Eventually(t, func() bool { return fake.reportCount() >= 1 }, eventuallyWait, eventuallyTick)

	report, ok := fake.lastReport()
	require.True(t, ok)
	require.Equal(t, 20.0, report.seconds)
	require.False(t, report.completed)
}

func TestTracker_CompletionThreshold(t *testing.T) {
	fake := &fakeSync{}
	tracker := newTestTracker(fake, 100)
	defer tracker.Stop()
	tracker.Start(context.Background())

	tracker.SetPosition(50)
	require.Eventually(t, func() bool { return fake.reportCount() >= 1 }, eventuallyWait, eventuallyTick)
	report, _ := fake.lastReport()
	require.False(t, report.completed, "half-watched is not completed")

	tracker.SetPosition(95)
	require.Eventually(t, func() bool {
		report, ok := fake.lastReport()
		return ok && report.completed
	}, eventuallyWait, eventuallyTick)
	require.True(t, tracker.Completed())
}

func TestTracker_ExactThresholdIsNotCompleted(t *testing.T) {
	fake := &fakeSync{}
	tracker := newTestTracker(fake, 100)
	defer tracker.Stop()
	tracker.Start(context.Background())

	// Completion requires the watched fraction to exceed 0.9, so sitting
	// exactly on the boundary does not count.
	tracker.SetPosition(90)
	require.Eventually(t, func() bool { return fake.reportCount() >= 1 }, eventuallyWait, eventuallyTick)

	report, _ := fake.lastReport()
	require.Equal(t, 90.0, report.seconds)
	require.False(t, report.completed)
	require.False(t, tracker.Completed())
}

func TestTracker_EndReportsFullDuration(t *testing.T) {
	fake := &fakeSync{}
	tracker := newTestTracker(fake, 100)
	defer tracker.Stop()
	tracker.Start(context.Background())

	tracker.SetPosition(30)
	tracker.End()

	require.Eventually(t, func() bool {
		report, ok := fake.lastReport()
		return ok && report.completed && report.seconds == 100.0
	}, eventuallyWait, eventuallyTick)
	require.Equal(t, PlaybackEnded, tracker.State())
}

func TestTracker_PauseFlushesAndStopsReporting(t *testing.T) {
	fake := &fakeSync{}
	tracker := newTestTracker(fake, 600)
	defer tracker.Stop()
	tracker.Start(context.Background())

	tracker.SetPosition(15)
	tracker.Pause()
	require.Equal(t, PlaybackPaused, tracker.State())

	require.Eventually(t, func() bool { return fake.reportCount() >= 1 }, eventuallyWait, eventuallyTick)
	flushed := fake.reportCount()

	// Paused position changes do not produce periodic reports.
	tracker.SetPosition(200)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, flushed, fake.reportCount())

	tracker.Play()
	require.Equal(t, PlaybackPlaying, tracker.State())
	require.Eventually(t, func() bool { return fake.reportCount() > flushed }, eventuallyWait, eventuallyTick)
}

func TestTracker_ReportFailureIsRetriedNextTick(t *testing.T) {
	fake := &fakeSync{}
	fake.setReportErr(errors.New("network blip"))
	tracker := newTestTracker(fake, 600)
	defer tracker.Stop()
	tracker.Start(context.Background())

	tracker.SetPosition(30)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, fake.reportCount(), "failed reports are swallowed")

	fake.setReportErr(nil)
	require.Eventually(t, func() bool { return fake.reportCount() >= 1 }, eventuallyWait, eventuallyTick)

	report, _ := fake.lastReport()
	require.Equal(t, 30.0, report.seconds)
}

func TestTracker_ResumedCompletedLessonStaysCompleted(t *testing.T) {
	fake := &fakeSync{savedPosition: 100, savedDone: true}
	tracker := newTestTracker(fake, 100)
	defer tracker.Stop()
	tracker.Start(context.Background())

	// Rewatching from the start still reports completed.
	tracker.SetPosition(0)
	tracker.SetPosition(15)
	require.Eventually(t, func() bool { return fake.reportCount() >= 1 }, eventuallyWait, eventuallyTick)

	report, _ := fake.lastReport()
	require.True(t, report.completed)
}

func TestTracker_SetPositionClamps(t *testing.T) {
	tracker := newTestTracker(&fakeSync{}, 100)

	tracker.SetPosition(-5)
	require.Zero(t, tracker.Position())

	tracker.SetPosition(500)
	require.Equal(t, 100.0, tracker.Position())
}

func TestTracker_StopWithoutStartIsSafe(t *testing.T) {
	fake := &fakeSync{}
	tracker := newTestTracker(fake, 100)

	tracker.Stop()
	require.Zero(t, fake.reportCount())
}
