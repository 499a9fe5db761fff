package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/kumudkode/lms-apiserver/internal/services"
	"github.com/kumudkode/lms-apiserver/internal/store"
	"github.com/kumudkode/lms-apiserver/types"
)

// fakeCourseRepo serves a fixed catalog; only lesson lookups matter here.
type fakeCourseRepo struct {
	lessons map[int]types.Lesson
}

func (r *fakeCourseRepo) List(ctx context.Context, offset, limit int) ([]types.Course, int, error) {
	return nil, 0, nil
}

func (r *fakeCourseRepo) Get(ctx context.Context, id int) (types.Course, error) {
	return types.Course{}, store.ErrNotFound
}

func (r *fakeCourseRepo) Create(ctx context.Context, course types.Course) (types.Course, error) {
	return course, nil
}

func (r *fakeCourseRepo) Update(ctx context.Context, course types.Course) (types.Course, error) {
	return types.Course{}, store.ErrNotFound
}

func (r *fakeCourseRepo) Delete(ctx context.Context, id int) error {
	return store.ErrNotFound
}

func (r *fakeCourseRepo) ListLessons(ctx context.Context, courseID int) ([]types.Lesson, error) {
	return nil, nil
}

func (r *fakeCourseRepo) GetLesson(ctx context.Context, courseID, lessonID int) (types.Lesson, error) {
	lesson, ok := r.lessons[lessonID]
	if !ok || lesson.CourseID != courseID {
		return types.Lesson{}, store.ErrNotFound
	}
	return lesson, nil
}

func (r *fakeCourseRepo) CreateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	id := 1
	for existing := range r.lessons {
		if existing >= id {
			id = existing + 1
		}
	}
	lesson.ID = id
	r.lessons[id] = lesson
	return lesson, nil
}

func (r *fakeCourseRepo) UpdateLesson(ctx context.Context, lesson types.Lesson) (types.Lesson, error) {
	existing, ok := r.lessons[lesson.ID]
	if !ok || existing.CourseID != lesson.CourseID {
		return types.Lesson{}, store.ErrNotFound
	}
	r.lessons[lesson.ID] = lesson
	return lesson, nil
}

func (r *fakeCourseRepo) DeleteLesson(ctx context.Context, courseID, lessonID int) error {
	return store.ErrNotFound
}

// fakeProgressRepo mirrors the database upsert, including the monotonic
// completed flag.
type fakeProgressRepo struct {
	records map[int]types.LessonProgress
}

func (r *fakeProgressRepo) Get(ctx context.Context, userID, lessonID int) (types.LessonProgress, error) {
	record, ok := r.records[lessonID]
	if !ok || record.UserID != userID {
		return types.LessonProgress{}, store.ErrNotFound
	}
	return record, nil
}

func (r *fakeProgressRepo) Upsert(ctx context.Context, progress types.LessonProgress) (types.LessonProgress, error) {
	if existing, ok := r.records[progress.LessonID]; ok && existing.UserID == progress.UserID {
		progress.Completed = progress.Completed || existing.Completed
	}
	progress.UpdatedAt = time.Now()
	r.records[progress.LessonID] = progress
	return progress, nil
}

func (r *fakeProgressRepo) ListByUser(ctx context.Context, userID int) ([]types.LessonProgress, error) {
	return nil, nil
}

func newProgressTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	credentials, err := services.NewCredentialService("handler-test-secret-0123456789", 0, time.Hour)
	require.NoError(t, err)

	courseService := services.NewCourseService(&fakeCourseRepo{
		lessons: map[int]types.Lesson{
			3: {ID: 3, CourseID: 1, Title: "Intro", DurationSeconds: 100},
		},
	}, nil)
	progressService := services.NewProgressService(&fakeProgressRepo{records: map[int]types.LessonProgress{}}, nil)

	r := chi.NewRouter()
	r.Route("/api/courses/{courseID}/lessons/{lessonID}/progress", func(r chi.Router) {
		ProgressRouter(r, progressService, courseService, RequireAuth(credentials))
	})

	token, err := credentials.IssueToken(types.User{ID: 7, Email: "ada@example.com", Role: types.RoleStudent})
	require.NoError(t, err)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, token
}

func doJSONRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestGetProgress_UnwatchedLessonIsZeroNotMissing(t *testing.T) {
	server, token := newProgressTestServer(t)

	resp := doJSONRequest(t, http.MethodGet, server.URL+"/api/courses/1/lessons/3/progress", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[ProgressResponse](t, resp)
	require.Zero(t, body.ProgressSeconds)
	require.False(t, body.Completed)
}

func TestGetProgress_UnknownLessonIs404(t *testing.T) {
	server, token := newProgressTestServer(t)

	resp := doJSONRequest(t, http.MethodGet, server.URL+"/api/courses/1/lessons/99/progress", token, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// A lesson id that belongs to another course is also missing.
	resp = doJSONRequest(t, http.MethodGet, server.URL+"/api/courses/2/lessons/3/progress", token, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestReportProgress_RoundTrip(t *testing.T) {
	server, token := newProgressTestServer(t)
	url := server.URL + "/api/courses/1/lessons/3/progress"

	resp := doJSONRequest(t, http.MethodPost, url, token, `{"progress_seconds": 42.5, "completed": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[ProgressResponse](t, resp)
	require.True(t, body.Success)
	require.Equal(t, 42.5, body.ProgressSeconds)

	resp = doJSONRequest(t, http.MethodGet, url, token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeBody[ProgressResponse](t, resp)
	require.Equal(t, 42.5, fetched.ProgressSeconds)
}

func TestReportProgress_CompletionLatches(t *testing.T) {
	server, token := newProgressTestServer(t)
	url := server.URL + "/api/courses/1/lessons/3/progress"

	resp := doJSONRequest(t, http.MethodPost, url, token, `{"progress_seconds": 95, "completed": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Rewatching reports an early position without the flag; the stored
	// record keeps it.
	resp = doJSONRequest(t, http.MethodPost, url, token, `{"progress_seconds": 10, "completed": false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[ProgressResponse](t, resp)
	require.True(t, body.Completed)
	require.Equal(t, 10.0, body.ProgressSeconds)
}

func TestReportProgress_RejectsNegativePosition(t *testing.T) {
	server, token := newProgressTestServer(t)

	resp := doJSONRequest(t, http.MethodPost, server.URL+"/api/courses/1/lessons/3/progress", token, `{"progress_seconds": -1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProgress_RequiresAuth(t *testing.T) {
	server, _ := newProgressTestServer(t)
	url := server.URL + "/api/courses/1/lessons/3/progress"

	resp := doJSONRequest(t, http.MethodGet, url, "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSONRequest(t, http.MethodPost, url, "", `{"progress_seconds": 10}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
