package interfaces

import (
	"context"
	"errors"

	"github.com/voluma/forge/internal/models"
)

// ErrJobNotFound is returned when a job id does not resolve to a record.
// Webhook callers treat this as "ignore, do not retry indefinitely" - the job
// may have been removed by an out-of-band admin action, or the id is spoofed.
var ErrJobNotFound = errors.New("job not found")

// ErrExperienceNotFound is returned when an experience id does not resolve.
var ErrExperienceNotFound = errors.New("experience not found")

// JobStorage is the single source of truth for processing jobs. All writes
// are field-level partial merges, never full-document replacement.
type JobStorage interface {
	// GetJob returns the job or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error)

	// UpdateJob applies a partial update and returns the resulting record.
	UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.ProcessingJob, error)

	// UpdateJobIfNotTerminal applies the update only while the job is in a
	// non-terminal status. Returns the stored record and whether the update
	// was applied. A no-op on a terminal job is not an error.
	UpdateJobIfNotTerminal(ctx context.Context, jobID string, update *models.JobUpdate) (*models.ProcessingJob, bool, error)

	// FindJobsByStatusIn returns all jobs whose status is in the given set.
	FindJobsByStatusIn(ctx context.Context, statuses []models.JobStatus) ([]*models.ProcessingJob, error)

	// BulkUpdateJobs applies the same partial update to every listed job and
	// returns the number of records written.
	BulkUpdateJobs(ctx context.Context, jobIDs []string, update *models.JobUpdate) (int, error)

	// SaveJob upserts a full record. Used by the enqueue path and tests; the
	// webhook paths only ever apply partial updates.
	SaveJob(ctx context.Context, job *models.ProcessingJob) error
}

// ExperienceStorage persists the owning content records. The core only writes
// the output URL fields and the publication status.
type ExperienceStorage interface {
	GetExperience(ctx context.Context, experienceID string) (*models.Experience, error)
	SaveExperience(ctx context.Context, exp *models.Experience) error

	// PublishExperience copies the job outputs onto the record and flips it
	// to PUBLISHED. Creates the record if the enqueue path has not persisted
	// it yet - the completion resolver must never lose delivered outputs.
	PublishExperience(ctx context.Context, experienceID string, outputs *models.CompletionOutputs) (*models.Experience, error)
}

// StorageManager bundles the storage backends behind one lifecycle.
type StorageManager interface {
	JobStorage() JobStorage
	ExperienceStorage() ExperienceStorage
	Close() error
}
