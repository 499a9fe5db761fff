package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/internal/services"
	"github.com/kumudkode/lms-apiserver/internal/store"
	"github.com/kumudkode/lms-apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	// maxVideoBytes caps lesson video uploads.
	maxVideoBytes = 2 << 30
)

// CourseHandler provides HTTP handlers for the course catalog.
type CourseHandler struct {
	courseService *services.CourseService
	userService   *services.UserService
}

// NewCourseHandler constructs a handler with the provided services.
func NewCourseHandler(courseService *services.CourseService, userService *services.UserService) *CourseHandler {
	return &CourseHandler{
		courseService: courseService,
		userService:   userService,
	}
}

// CourseRouter registers course and lesson routes on the given router.
// Reads are public; writes require an instructor or admin. mountLesson, when
// non-nil, is invoked on each lesson subrouter so related surfaces (playback
// progress) can hang routes off /{courseID}/lessons/{lessonID}.
func CourseRouter(
	r chi.Router,
	courseService *services.CourseService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	mountLesson func(chi.Router),
) {
	handler := NewCourseHandler(courseService, userService)

	r.Get("/", handler.ListCourses)
	r.With(authMiddleware, handler.requireInstructor).Post("/", handler.CreateCourse)
	r.Route("/{courseID}", func(r chi.Router) {
		r.Get("/", handler.GetCourse)
		r.With(authMiddleware, handler.requireInstructor).Put("/", handler.UpdateCourse)
		r.With(authMiddleware, handler.requireInstructor).Delete("/", handler.DeleteCourse)

		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", handler.ListLessons)
			r.With(authMiddleware, handler.requireInstructor).Post("/", handler.CreateLesson)
			r.Route("/{lessonID}", func(r chi.Router) {
				r.Get("/", handler.GetLesson)
				r.With(authMiddleware, handler.requireInstructor).Put("/", handler.UpdateLesson)
				r.With(authMiddleware, handler.requireInstructor).Delete("/", handler.DeleteLesson)
				r.Get("/video", handler.GetLessonVideo)
				r.With(authMiddleware, handler.requireInstructor).Post("/video", handler.UploadLessonVideo)
				if mountLesson != nil {
					mountLesson(r)
				}
			})
		})
	})
}

// requireInstructor loads the current user and rejects anyone who is not an
// instructor or admin. Role is read from the store, not the token, so a
// demotion takes effect before the token expires.
func (h *CourseHandler) requireInstructor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			logging.Error().Err(err).Msg("load user for role check")
			writeError(w, http.StatusInternalServerError, "failed to authorize")
			return
		}

		if user.Role != types.RoleInstructor && user.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "instructor role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.courseService.List(r.Context(), offset, limit)
	if err != nil {
		logging.Error().Err(err).Msg("list courses")
		writeError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	writeJSON(w, http.StatusOK, CourseListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	course, err := h.courseService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		logging.Error().Err(err).Msg("fetch course")
		writeError(w, http.StatusInternalServerError, "failed to fetch course")
		return
	}

	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	instructorID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	created, err := h.courseService.Create(r.Context(), types.Course{
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: instructorID,
	})
	if err != nil {
		logging.Error().Err(err).Msg("create course")
		writeError(w, http.StatusInternalServerError, "failed to create course")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CourseUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	updated, err := h.courseService.Update(r.Context(), types.Course{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		logging.Error().Err(err).Msg("update course")
		writeError(w, http.StatusInternalServerError, "failed to update course")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.courseService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		logging.Error().Err(err).Msg("delete course")
		writeError(w, http.StatusInternalServerError, "failed to delete course")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lessons, err := h.courseService.ListLessons(r.Context(), courseID)
	if err != nil {
		logging.Error().Err(err).Msg("list lessons")
		writeError(w, http.StatusInternalServerError, "failed to list lessons")
		return
	}

	writeJSON(w, http.StatusOK, LessonListResponse{Items: lessons})
}

func (h *CourseHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lesson, err := h.courseService.GetLesson(r.Context(), courseID, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found")
			return
		}
		logging.Error().Err(err).Msg("fetch lesson")
		writeError(w, http.StatusInternalServerError, "failed to fetch lesson")
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

func (h *CourseHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req LessonUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}

	created, err := h.courseService.CreateLesson(r.Context(), types.Lesson{
		CourseID:        courseID,
		Title:           req.Title,
		Position:        req.Position,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		logging.Error().Err(err).Msg("create lesson")
		writeError(w, http.StatusInternalServerError, "failed to create lesson")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *CourseHandler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req LessonUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}

	current, err := h.courseService.GetLesson(r.Context(), courseID, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found")
			return
		}
		logging.Error().Err(err).Msg("fetch lesson")
		writeError(w, http.StatusInternalServerError, "failed to update lesson")
		return
	}

	current.Title = req.Title
	current.Position = req.Position
	current.DurationSeconds = req.DurationSeconds

	updated, err := h.courseService.UpdateLesson(r.Context(), current)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found")
			return
		}
		logging.Error().Err(err).Msg("update lesson")
		writeError(w, http.StatusInternalServerError, "failed to update lesson")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *CourseHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.courseService.DeleteLesson(r.Context(), courseID, lessonID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found")
			return
		}
		logging.Error().Err(err).Msg("delete lesson")
		writeError(w, http.StatusInternalServerError, "failed to delete lesson")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadLessonVideo accepts the raw video body and stores it for the lesson.
func (h *CourseHandler) UploadLessonVideo(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	body := http.MaxBytesReader(w, r.Body, maxVideoBytes)
	defer body.Close()

	lesson, err := h.courseService.UploadLessonVideo(r.Context(), courseID, lessonID, body, r.ContentLength, contentType)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "lesson not found")
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusNotImplemented, "video storage is not configured")
		default:
			logging.Error().Err(err).Msg("upload lesson video")
			writeError(w, http.StatusInternalServerError, "failed to upload video")
		}
		return
	}

	writeJSON(w, http.StatusOK, lesson)
}

// GetLessonVideo streams the stored video content.
func (h *CourseHandler) GetLessonVideo(w http.ResponseWriter, r *http.Request) {
	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, err := h.courseService.OpenLessonVideo(r.Context(), courseID, lessonID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrNoVideo):
			writeError(w, http.StatusNotFound, "video not found")
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusNotImplemented, "video storage is not configured")
		default:
			logging.Error().Err(err).Msg("open lesson video")
			writeError(w, http.StatusInternalServerError, "failed to fetch video")
		}
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "video/mp4")
	_, _ = io.Copy(w, reader)
}

// CourseUpsertRequest is the JSON payload for course create/update.
type CourseUpsertRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// LessonUpsertRequest is the JSON payload for lesson create/update.
type LessonUpsertRequest struct {
	Title           string  `json:"title"`
	Position        int     `json:"position"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// CourseListResponse is the paginated list response payload.
type CourseListResponse struct {
	Items []types.Course `json:"items"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

// LessonListResponse wraps a course's lessons.
type LessonListResponse struct {
	Items []types.Lesson `json:"items"`
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func parseLessonParams(r *http.Request) (courseID, lessonID int, err error) {
	courseID, err = parseIDParam(r, "courseID")
	if err != nil {
		return 0, 0, err
	}
	lessonID, err = parseIDParam(r, "lessonID")
	if err != nil {
		return 0, 0, err
	}
	return courseID, lessonID, nil
}
