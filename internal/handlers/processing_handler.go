// -----------------------------------------------------------------------
// Webhook endpoints called by the external GPU worker fleet
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
	"github.com/voluma/forge/internal/services/completion"
	"github.com/voluma/forge/internal/services/progress"
)

// ProcessingHandler receives progress and completion webhooks. Deliveries are
// at-least-once and unordered; only a failed durable write may produce a
// 500-class response, because the worker's own redelivery is the retry
// mechanism.
type ProcessingHandler struct {
	progressService   *progress.Service
	completionService *completion.Service
	webhookConfig     *common.WebhookConfig
	validate          *validator.Validate
	logger            arbor.ILogger
}

// NewProcessingHandler creates a new processing webhook handler
func NewProcessingHandler(progressService *progress.Service, completionService *completion.Service, webhookConfig *common.WebhookConfig, logger arbor.ILogger) *ProcessingHandler {
	return &ProcessingHandler{
		progressService:   progressService,
		completionService: completionService,
		webhookConfig:     webhookConfig,
		validate:          validator.New(),
		logger:            logger,
	}
}

// ProgressHandler ingests a progress report
// POST /api/processing/progress
func (h *ProcessingHandler) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if !RequireSecret(w, r, "X-Webhook-Secret", h.webhookConfig.Secret) {
		return
	}

	var report models.ProgressReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(&report); err != nil {
		WriteError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	ack, err := h.progressService.Ingest(r.Context(), &report)
	if err != nil {
		switch err {
		case progress.ErrMissingJobID:
			WriteError(w, http.StatusBadRequest, "Missing job ID")
		case interfaces.ErrJobNotFound:
			// The job may have been removed out-of-band or the id spoofed;
			// a 404 tells the worker not to keep retrying.
			WriteError(w, http.StatusNotFound, "Job not found")
		default:
			h.logger.Error().Err(err).Str("job_id", report.ProductionID).Msg("Progress ingest failed")
			WriteError(w, http.StatusInternalServerError, "Failed to record progress")
		}
		return
	}

	WriteJSON(w, http.StatusOK, ack)
}

// CallbackHandler resolves a completion report
// POST /api/processing/callback
func (h *ProcessingHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if !RequireSecret(w, r, "X-Webhook-Secret", h.webhookConfig.Secret) {
		return
	}

	var report models.CompletionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(&report); err != nil {
		WriteError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	job, err := h.completionService.Resolve(r.Context(), &report)
	if err != nil {
		switch err {
		case interfaces.ErrJobNotFound:
			WriteError(w, http.StatusNotFound, "Job not found")
		default:
			h.logger.Error().Err(err).Str("job_id", report.ProductionID).Msg("Completion resolve failed")
			WriteError(w, http.StatusInternalServerError, "Failed to record completion")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}
