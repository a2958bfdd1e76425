// -----------------------------------------------------------------------
// Processing Job - authoritative record of one splat conversion attempt
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobStatus is the authoritative lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// TerminalStatuses are the states from which a job is never mutated again,
// except by administrative override.
var TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}

// IsTerminal returns true for COMPLETED, FAILED and CANCELLED.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ProcessingJob tracks a long-running GPU conversion from submission through
// completion. Jobs are created QUEUED by the enqueue path, mutated only by the
// progress ingestor, the completion resolver and the stuck-job reconciler, and
// retained after reaching a terminal state for audit history.
type ProcessingJob struct {
	ID           string `json:"id" badgerhold:"key"`
	ExperienceID string `json:"experience_id"` // Owning content record

	Status   JobStatus `json:"status"`
	Stage    *string   `json:"stage,omitempty"` // Canonical pipeline stage, descriptive only
	Progress int       `json:"progress"`        // Percentage, clamped to [0,100]
	Message  string    `json:"message,omitempty"`

	QueuedAt      time.Time  `json:"queued_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`

	// Result fields, set only on successful completion
	PlyURL       string `json:"ply_url,omitempty"`
	MetadataURL  string `json:"metadata_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PreviewURL   string `json:"preview_url,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`

	// Seconds from StartedAt to CompletedAt, computed once at completion.
	// Nil when the job went terminal without an observed start.
	ProcessingTime *int `json:"processing_time,omitempty"`
}

// NewProcessingJob creates a queued job for an experience.
func NewProcessingJob(jobID, experienceID string) *ProcessingJob {
	return &ProcessingJob{
		ID:           jobID,
		ExperienceID: experienceID,
		Status:       JobStatusQueued,
		QueuedAt:     time.Now(),
	}
}

// IsTerminal returns true if the job has reached a terminal status.
func (j *ProcessingJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// StageName returns the canonical stage or empty string.
func (j *ProcessingJob) StageName() string {
	if j.Stage == nil {
		return ""
	}
	return *j.Stage
}

// ClampProgress bounds a reported percentage to [0,100]. Out-of-range worker
// reports are clamped rather than rejected.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// JobUpdate is a field-level partial update applied to a stored job. Nil
// fields are left untouched so concurrent writers touching disjoint fields do
// not clobber each other. ClearStage and ClearProcessingTime exist because a
// nil pointer already means "unchanged".
type JobUpdate struct {
	Status        *JobStatus
	Stage         *string
	ClearStage    bool
	Progress      *int
	Message       *string
	StartedAt     *time.Time
	// StartedAtIfUnset records the first observed processing transition
	// without letting a late retry overwrite the original start time.
	StartedAtIfUnset *time.Time
	CompletedAt      *time.Time
	LastHeartbeat    *time.Time

	PlyURL       *string
	MetadataURL  *string
	ThumbnailURL *string
	PreviewURL   *string

	Error           *string
	RetryCountDelta int
	ProcessingTime  *int
}

// Apply merges the update into the job in place.
func (u *JobUpdate) Apply(j *ProcessingJob) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.ClearStage {
		j.Stage = nil
	} else if u.Stage != nil {
		j.Stage = u.Stage
	}
	if u.Progress != nil {
		j.Progress = ClampProgress(*u.Progress)
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.StartedAt != nil {
		j.StartedAt = u.StartedAt
	}
	if u.StartedAtIfUnset != nil && j.StartedAt == nil {
		j.StartedAt = u.StartedAtIfUnset
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
	if u.LastHeartbeat != nil {
		j.LastHeartbeat = u.LastHeartbeat
	}
	if u.PlyURL != nil {
		j.PlyURL = *u.PlyURL
	}
	if u.MetadataURL != nil {
		j.MetadataURL = *u.MetadataURL
	}
	if u.ThumbnailURL != nil {
		j.ThumbnailURL = *u.ThumbnailURL
	}
	if u.PreviewURL != nil {
		j.PreviewURL = *u.PreviewURL
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	j.RetryCount += u.RetryCountDelta
	if u.ProcessingTime != nil {
		j.ProcessingTime = u.ProcessingTime
	}
}

// StatusPtr is a convenience for building JobUpdate literals.
func StatusPtr(s JobStatus) *JobStatus { return &s }

// StringPtr is a convenience for building JobUpdate literals.
func StringPtr(s string) *string { return &s }

// IntPtr is a convenience for building JobUpdate literals.
func IntPtr(i int) *int { return &i }

// TimePtr is a convenience for building JobUpdate literals.
func TimePtr(t time.Time) *time.Time { return &t }
