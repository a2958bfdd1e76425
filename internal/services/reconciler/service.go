// -----------------------------------------------------------------------
// Stuck-Job Reconciler - administrative sweep of non-terminal jobs
// -----------------------------------------------------------------------

package reconciler

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
)

// CancelledMessage is the fixed administrative error recorded on swept jobs.
const CancelledMessage = "Job cancelled by administrator"

// CancelledJob records a swept job's identity and prior status for audit.
type CancelledJob struct {
	ID          string           `json:"id"`
	PriorStatus models.JobStatus `json:"prior_status"`
}

// SweepResult is returned from a sweep for operator display.
type SweepResult struct {
	CancelledCount int            `json:"cancelled_count"`
	CancelledJobs  []CancelledJob `json:"cancelled_jobs"`
}

// Service force-terminates jobs wedged in non-terminal states. It is a blunt
// instrument for manual operator invocation - there is no age threshold: any
// job still QUEUED or PROCESSING is a candidate.
type Service struct {
	jobs   interfaces.JobStorage
	logger arbor.ILogger
}

// NewService creates a reconciler service.
func NewService(jobs interfaces.JobStorage, logger arbor.ILogger) *Service {
	return &Service{
		jobs:   jobs,
		logger: logger,
	}
}

// List returns every job currently in a non-terminal status.
func (s *Service) List(ctx context.Context) ([]*models.ProcessingJob, error) {
	return s.jobs.FindJobsByStatusIn(ctx, []models.JobStatus{
		models.JobStatusQueued,
		models.JobStatusProcessing,
	})
}

// Sweep bulk-transitions every non-terminal job to CANCELLED with the stage
// cleared and a fixed administrative error message.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	stuck, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{CancelledJobs: []CancelledJob{}}
	if len(stuck) == 0 {
		return result, nil
	}

	jobIDs := make([]string, len(stuck))
	for i, job := range stuck {
		jobIDs[i] = job.ID
		result.CancelledJobs = append(result.CancelledJobs, CancelledJob{
			ID:          job.ID,
			PriorStatus: job.Status,
		})
	}

	update := &models.JobUpdate{
		Status:      models.StatusPtr(models.JobStatusCancelled),
		ClearStage:  true,
		Error:       models.StringPtr(CancelledMessage),
		CompletedAt: models.TimePtr(time.Now()),
	}

	count, err := s.jobs.BulkUpdateJobs(ctx, jobIDs, update)
	if err != nil {
		return nil, err
	}
	result.CancelledCount = count

	s.logger.Info().
		Int("cancelled", count).
		Msg("Stuck jobs force-cancelled by administrator")

	return result, nil
}
