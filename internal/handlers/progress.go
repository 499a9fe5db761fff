package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/internal/services"
	"github.com/kumudkode/lms-apiserver/internal/store"
	"github.com/kumudkode/lms-apiserver/types"
)

// ProgressHandler serves playback progress for the authenticated user.
type ProgressHandler struct {
	progressService *services.ProgressService
	courseService   *services.CourseService
}

// NewProgressHandler constructs a handler with the provided services.
func NewProgressHandler(progressService *services.ProgressService, courseService *services.CourseService) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
		courseService:   courseService,
	}
}

// ProgressRouter registers progress routes under a lesson route that already
// carries courseID and lessonID URL params. All routes require auth.
func ProgressRouter(
	r chi.Router,
	progressService *services.ProgressService,
	courseService *services.CourseService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProgressHandler(progressService, courseService)

	r.With(authMiddleware).Get("/", handler.GetProgress)
	r.With(authMiddleware).Post("/", handler.ReportProgress)
}

// GetProgress returns the stored playback position for the current user.
// A lesson never watched yields zeros, not 404, so the player can seek to 0.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.courseService.GetLesson(r.Context(), courseID, lessonID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found")
			return
		}
		logging.Error().Err(err).Msg("fetch lesson for progress")
		writeError(w, http.StatusInternalServerError, "failed to fetch progress")
		return
	}

	progress, err := h.progressService.Get(r.Context(), userID, lessonID)
	if err != nil {
		logging.Error().Err(err).Msg("fetch progress")
		writeError(w, http.StatusInternalServerError, "failed to fetch progress")
		return
	}

	writeJSON(w, http.StatusOK, ProgressResponse{
		ProgressSeconds: progress.ProgressSeconds,
		Completed:       progress.Completed,
	})
}

// ReportProgress upserts the playback position for the current user.
func (h *ProgressHandler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, lessonID, err := parseLessonParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ProgressReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.ProgressSeconds < 0 {
		writeError(w, http.StatusBadRequest, "invalid progress")
		return
	}

	if _, err := h.courseService.GetLesson(r.Context(), courseID, lessonID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lesson not found")
			return
		}
		logging.Error().Err(err).Msg("fetch lesson for progress")
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}

	stored, err := h.progressService.Record(r.Context(), courseID, types.LessonProgress{
		UserID:          userID,
		LessonID:        lessonID,
		ProgressSeconds: req.ProgressSeconds,
		Completed:       req.Completed,
	})
	if err != nil {
		logging.Error().Err(err).Msg("save progress")
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}

	writeJSON(w, http.StatusOK, ProgressResponse{
		Success:         true,
		ProgressSeconds: stored.ProgressSeconds,
		Completed:       stored.Completed,
	})
}

// ProgressReportRequest is the JSON payload for a progress report.
type ProgressReportRequest struct {
	ProgressSeconds float64 `json:"progress_seconds"`
	Completed       bool    `json:"completed"`
}

// ProgressResponse carries stored progress back to the client.
type ProgressResponse struct {
	Success         bool    `json:"success,omitempty"`
	ProgressSeconds float64 `json:"progress_seconds"`
	Completed       bool    `json:"completed"`
}
