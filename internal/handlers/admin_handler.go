package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/services/reconciler"
)

// AdminHandler exposes the stuck-job reconciler to authenticated operators.
type AdminHandler struct {
	reconcilerService *reconciler.Service
	adminConfig       *common.AdminConfig
	logger            arbor.ILogger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reconcilerService *reconciler.Service, adminConfig *common.AdminConfig, logger arbor.ILogger) *AdminHandler {
	return &AdminHandler{
		reconcilerService: reconcilerService,
		adminConfig:       adminConfig,
		logger:            logger,
	}
}

// ListStuckJobsHandler returns every job in a non-terminal status
// GET /api/admin/jobs/stuck
func (h *AdminHandler) ListStuckJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if !RequireSecret(w, r, "X-Admin-Token", h.adminConfig.Token) {
		return
	}

	jobs, err := h.reconcilerService.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list stuck jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list stuck jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// CancelStuckJobsHandler force-cancels every job in a non-terminal status
// POST /api/admin/jobs/stuck/cancel
func (h *AdminHandler) CancelStuckJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if !RequireSecret(w, r, "X-Admin-Token", h.adminConfig.Token) {
		return
	}

	result, err := h.reconcilerService.Sweep(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to sweep stuck jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel stuck jobs")
		return
	}

	h.logger.Info().Int("cancelled", result.CancelledCount).Msg("Admin sweep executed")

	WriteJSON(w, http.StatusOK, result)
}
