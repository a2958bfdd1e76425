package server

import (
	"net/http"
)

// setupRoutes registers all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Worker-facing webhooks
	mux.HandleFunc("/api/processing/progress", s.app.ProcessingHandler.ProgressHandler) // POST - progress report
	mux.HandleFunc("/api/processing/callback", s.app.ProcessingHandler.CallbackHandler) // POST - completion report

	// Studio-facing job queries
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler) // GET - list jobs by status
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler)  // GET /{id}

	// Operator endpoints
	mux.HandleFunc("/api/admin/jobs/stuck", s.app.AdminHandler.ListStuckJobsHandler)          // GET - list non-terminal jobs
	mux.HandleFunc("/api/admin/jobs/stuck/cancel", s.app.AdminHandler.CancelStuckJobsHandler) // POST - force-cancel them

	// Live progress stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Service endpoints
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// Catch-all for unknown API paths
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
