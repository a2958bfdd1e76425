package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
)

// JobHandler serves job state to the studio's polling UI.
type JobHandler struct {
	jobStorage interfaces.JobStorage
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStorage interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStorage: jobStorage,
		logger:     logger,
	}
}

// ListJobsHandler returns jobs filtered by status
// GET /api/jobs?status=PROCESSING,QUEUED
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	statuses := []models.JobStatus{
		models.JobStatusQueued,
		models.JobStatusProcessing,
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	}
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		statuses = statuses[:0]
		for _, s := range strings.Split(statusParam, ",") {
			statuses = append(statuses, models.JobStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}

	jobs, err := h.jobStorage.FindJobsByStatusIn(r.Context(), statuses)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler returns a single job by ID
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	// Extract job ID from path: /api/jobs/{id}
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 || pathParts[2] == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}
	jobID := pathParts[2]

	job, err := h.jobStorage.GetJob(r.Context(), jobID)
	if err != nil {
		if err == interfaces.ErrJobNotFound {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}
