// -----------------------------------------------------------------------
// Webhook payloads posted by the external GPU worker
// -----------------------------------------------------------------------

package models

// ProgressReport is the body of POST /api/processing/progress. The worker is
// untrusted: stage is free text and progress may be out of range.
type ProgressReport struct {
	ProductionID string `json:"production_id" validate:"required"`
	Stage        string `json:"stage"`
	Progress     int    `json:"progress"`
	Message      string `json:"message,omitempty"`
}

// ProgressAck is returned to the worker after a progress report is ingested.
// It echoes the canonical stage and the clamped percentage.
type ProgressAck struct {
	JobID    string    `json:"job_id"`
	Stage    string    `json:"stage"`
	Progress int       `json:"progress"`
	Status   JobStatus `json:"status"`
}

// CompletionOutputs carries the artifact URLs from a completed run. PlyURL is
// the primary output; a success report without it is treated as a failure.
type CompletionOutputs struct {
	PlyURL       string `json:"plyUrl,omitempty" validate:"omitempty,url"`
	MetadataURL  string `json:"metadataUrl,omitempty" validate:"omitempty,url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty" validate:"omitempty,url"`
	PreviewURL   string `json:"previewUrl,omitempty" validate:"omitempty,url"`
}

// CompletionReport is the body of POST /api/processing/callback, sent once
// per run. Delivery is at-least-once and may interleave with stale progress
// reports.
type CompletionReport struct {
	ProductionID string             `json:"production_id" validate:"required"`
	ExperienceID string             `json:"experience_id"`
	Success      bool               `json:"success"`
	Outputs      *CompletionOutputs `json:"outputs,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// HasPrimaryOutput reports whether a usable primary artifact was delivered.
func (r *CompletionReport) HasPrimaryOutput() bool {
	return r.Outputs != nil && r.Outputs.PlyURL != ""
}
